package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	mu       *sync.Mutex
	log      *[]string
	name     string
	startErr error
}

func (s *recordingService) Start(_ context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.log = append(*s.log, "start:"+s.name)
	return nil
}

func (s *recordingService) Stop(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.log = append(*s.log, "stop:"+s.name)
}

type serviceRecorder struct {
	mu  sync.Mutex
	log []string
}

func (r *serviceRecorder) service(name string) *recordingService {
	return &recordingService{mu: &r.mu, log: &r.log, name: name}
}

func (r *serviceRecorder) failing(name string, err error) *recordingService {
	svc := r.service(name)
	svc.startErr = err
	return svc
}

func (r *serviceRecorder) index(entry string) int {
	for i, e := range r.log {
		if e == entry {
			return i
		}
	}
	return -1
}

func TestControllerStartsDependenciesFirst(t *testing.T) {
	rec := &serviceRecorder{}

	controller, err := NewController(ControllerOptions{
		Services: map[string]ServiceLifecycle{
			"broker":   rec.service("broker"),
			"database": rec.service("database"),
			"consumer": rec.service("consumer"),
		},
		Dependencies: map[string][]string{
			"consumer": {"broker", "database"},
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, controller.Start(context.Background()))

	assert.Less(t, rec.index("start:broker"), rec.index("start:consumer"))
	assert.Less(t, rec.index("start:database"), rec.index("start:consumer"))

	controller.Stop(context.Background())

	assert.Less(t, rec.index("stop:consumer"), rec.index("stop:broker"))
	assert.Less(t, rec.index("stop:consumer"), rec.index("stop:database"))
}

func TestControllerRollsBackOnStartFailure(t *testing.T) {
	rec := &serviceRecorder{}

	controller, err := NewController(ControllerOptions{
		Services: map[string]ServiceLifecycle{
			"broker":   rec.service("broker"),
			"consumer": rec.failing("consumer", errors.New("bind failed")),
		},
		Dependencies: map[string][]string{
			"consumer": {"broker"},
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	require.Error(t, controller.Start(context.Background()))

	assert.Contains(t, rec.log, "start:broker")
	assert.Contains(t, rec.log, "stop:broker")
	assert.NotContains(t, rec.log, "start:consumer")
}

func TestControllerRejectsUnknownDependency(t *testing.T) {
	rec := &serviceRecorder{}

	_, err := NewController(ControllerOptions{
		Services: map[string]ServiceLifecycle{
			"consumer": rec.service("consumer"),
		},
		Dependencies: map[string][]string{
			"consumer": {"ghost"},
		},
		Logger: zerolog.Nop(),
	})
	assert.Error(t, err)
}

func TestControllerRejectsCircularDependencies(t *testing.T) {
	rec := &serviceRecorder{}

	_, err := NewController(ControllerOptions{
		Services: map[string]ServiceLifecycle{
			"a": rec.service("a"),
			"b": rec.service("b"),
		},
		Dependencies: map[string][]string{
			"a": {"b"},
			"b": {"a"},
		},
		Logger: zerolog.Nop(),
	})
	assert.Error(t, err)
}
