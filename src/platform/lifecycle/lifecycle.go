package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creasty/defaults"
	"github.com/quipo/dependencysolver"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"heartbeat/src/platform/perr"
	"heartbeat/src/platform/validation"
	"heartbeat/src/util"
)

// ServiceLifecycle is implemented by every process-lifetime resource:
// kafka clients, the metrics server, the store pool.
type ServiceLifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// Controller starts services in dependency layers and stops them in
// reverse. A failed layer rolls back everything already started.
type Controller struct {
	services map[string]ServiceLifecycle
	layers   [][]string
	timeouts TimeoutsOptions
	logger   zerolog.Logger
}

type TimeoutsOptions struct {
	Startup  time.Duration `default:"15s" validate:"required,min=1000000000,max=60000000000"`
	Shutdown time.Duration `default:"15s" validate:"required,min=1000000000,max=60000000000"`
}

type ControllerOptions struct {
	Services     map[string]ServiceLifecycle `validate:"required,min=1,max=50"`
	Dependencies map[string][]string         `validate:"omitempty"`
	Timeouts     TimeoutsOptions             `validate:"required"`
	Logger       zerolog.Logger
}

func NewController(options ControllerOptions) (*Controller, error) {
	errorb := oops.
		In(util.GetFunctionName()).
		Code(perr.ECONFIG)

	if err := defaults.Set(&options); err != nil {
		return nil, errorb.Wrapf(err, "failed to set defaults")
	}
	if err := validation.Instance.Struct(&options); err != nil {
		return nil, errorb.Wrapf(err, "failed to validate options")
	}

	for svcName, svcDependencies := range options.Dependencies {
		if _, ok := options.Services[svcName]; !ok {
			return nil, errorb.Errorf("service '%s' in dependencies is not defined in 'Services'", svcName)
		}
		for _, dep := range svcDependencies {
			if _, ok := options.Services[dep]; !ok {
				return nil, errorb.Errorf("dependency '%s' for service '%s' is not defined in 'Services'", dep, svcName)
			}
		}
	}

	graph := make([]dependencysolver.Entry, 0, len(options.Services))
	for svcName := range options.Services {
		graph = append(graph, dependencysolver.Entry{ID: svcName, Deps: options.Dependencies[svcName]})
	}
	if dependencysolver.HasCircularDependency(graph) {
		return nil, errorb.Errorf("circular dependency detected between services: %v", graph)
	}

	return &Controller{
		services: options.Services,
		layers:   dependencysolver.LayeredTopologicalSort(graph),
		timeouts: options.Timeouts,
		logger:   options.Logger,
	}, nil
}

func (lc *Controller) Start(ctx context.Context) error {
	var startedLayers [][]string

	for layerIdx, layer := range lc.layers {
		var (
			wg        sync.WaitGroup
			succeeded = make([]string, len(layer))
			failed    atomic.Bool
		)

		for svcIdx, svcName := range layer {
			svc := lc.services[svcName]
			wg.Add(1)

			go func() {
				defer wg.Done()

				svcCtx, cancel := context.WithTimeout(ctx, lc.timeouts.Startup)
				defer cancel()

				if err := svc.Start(svcCtx); err != nil {
					lc.logger.Error().Err(err).Msgf("'%s' failed to start", svcName)
					failed.Store(true)
					return
				}

				succeeded[svcIdx] = svcName
				lc.logger.Info().Msgf("Started service '%s'", svcName)
			}()
		}
		wg.Wait()

		if failed.Load() {
			rollbackCtx := context.Background()

			lc.rollbackLayer(rollbackCtx, succeeded)
			lc.rollback(rollbackCtx, startedLayers)

			return fmt.Errorf("startup failed in layer %d; rollback performed", layerIdx)
		}

		startedLayers = append(startedLayers, layer)
	}

	lc.logger.Info().Msg("All services started successfully")
	return nil
}

func (lc *Controller) Stop(ctx context.Context) {
	lc.rollback(ctx, lc.layers)
}

func (lc *Controller) rollback(ctx context.Context, startedLayers [][]string) {
	for i := len(startedLayers) - 1; i >= 0; i-- {
		lc.rollbackLayer(ctx, startedLayers[i])
	}
}

func (lc *Controller) rollbackLayer(ctx context.Context, layer []string) {
	if len(layer) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, svcName := range layer {
		svc, ok := lc.services[svcName] // a layer may contain holes for services that never started
		if !ok {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			svcCtx, cancel := context.WithTimeout(ctx, lc.timeouts.Shutdown)
			defer cancel()

			svc.Stop(svcCtx)
			lc.logger.Info().Msgf("Stopped service '%s'", svcName)
		}()
	}
	wg.Wait()
}
