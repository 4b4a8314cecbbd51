package perr

// Error code constants attached to oops error builders across the
// pipeline. Kept POSIX-flavoured so log search works the same way it
// does for driver-level errors.
const (
	EAGAIN    string = "EAGAIN"
	ECONFIG   string = "ECONFIG"
	ECONNLOST string = "ECONNLOST"
	EEXIST    string = "EEXIST"
	EINIT     string = "EINIT"
	EINVAL    string = "EINVAL"
	EIO       string = "EIO"
	ENOENT    string = "ENOENT"
	ESHUTDOWN string = "ESHUTDOWN"
	ETIMEDOUT string = "ETIMEDOUT"
)

// Descriptions maps each error code to a human-readable message.
var Descriptions = map[string]string{
	EAGAIN:    "Resource temporarily unavailable",
	ECONFIG:   "Configuration failure",
	ECONNLOST: "Connection lost",
	EEXIST:    "Already exists",
	EINIT:     "Initialization failure",
	EINVAL:    "Invalid argument",
	EIO:       "Input/output error",
	ENOENT:    "No such entity",
	ESHUTDOWN: "Shutting down",
	ETIMEDOUT: "Operation timed out",
}

// Description returns a human-readable description for a code.
func Description(code string) string {
	if desc, ok := Descriptions[code]; ok {
		return desc
	}
	return "Unknown error"
}
