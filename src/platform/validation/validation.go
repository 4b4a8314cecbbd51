package validation

import (
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Instance is the process-wide validator. Config structs and service
// option structs are checked against it before use.
var Instance = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails for a blank tag name, which is a
	// programming error; panic at init is the right failure mode.
	if err := v.RegisterValidation("notblank", validateNotBlank); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("hostport_list", validateHostPortList); err != nil {
		panic(err)
	}

	return v
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return len(strings.TrimSpace(fl.Field().String())) > 0
}

func validateHostPortList(fl validator.FieldLevel) bool {
	addrs, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}

	for _, addr := range addrs {
		if !isValidHostPort(addr) {
			return false
		}
	}

	return len(addrs) > 0
}

func isValidHostPort(s string) bool {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return false
	}
	return host != "" && isValidPort(port)
}

func isValidPort(portStr string) bool {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return false
	}
	return port > 0 && port <= 65535
}
