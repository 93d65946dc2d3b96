package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/majlis/internal/config"
	"github.com/flemzord/majlis/pkg/app"
)

const serviceName = "majlis"

// program runs the application under the system service manager.
type program struct {
	params app.RunParams

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

var _ service.Interface = (*program)(nil)

// Start implements service.Interface. It must not block.
func (p *program) Start(service.Service) error {
	rt, err := app.Build(p.params)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	p.mu.Lock()
	p.cancel, p.done = cancel, done
	p.mu.Unlock()

	go func() { done <- rt.App.Run(ctx) }()
	return nil
}

// Stop implements service.Interface.
func (p *program) Stop(service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	return <-done
}

// absParams makes the config path and the data dir absolute, since service
// managers start the binary from another working directory.
func absParams(params app.RunParams) (app.RunParams, error) {
	if params.ConfigPath == "" {
		params.ConfigPath = config.ResolvePath()
	}
	abs, err := filepath.Abs(params.ConfigPath)
	if err != nil {
		return params, fmt.Errorf("service: resolving config path: %w", err)
	}
	params.ConfigPath = abs
	if params.DataDir != "" {
		if params.DataDir, err = filepath.Abs(params.DataDir); err != nil {
			return params, fmt.Errorf("service: resolving data dir: %w", err)
		}
	}
	return params, nil
}

// serviceConfig describes the unit running "majlis service run".
func serviceConfig(params app.RunParams) *service.Config {
	args := []string{"service", "run", "--config", params.ConfigPath}
	if params.DataDir != "" {
		args = append(args, "--data-dir", params.DataDir)
	}
	if params.LogLevel != "" {
		args = append(args, "--log-level", params.LogLevel)
	}
	return &service.Config{
		Name:        serviceName,
		DisplayName: "majlis",
		Description: "Council of AI personas with layered memory",
		Arguments:   args,
		Option: service.KeyValue{
			"Restart":     "on-failure",
			"UserService": true,
		},
	}
}

func newService(params app.RunParams) (service.Service, error) {
	params, err := absParams(params)
	if err != nil {
		return nil, err
	}
	svc, err := service.New(&program{params: params}, serviceConfig(params))
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return svc, nil
}

func serviceCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage majlis as a system service (systemd, launchd)",
	}

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the majlis service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := newService(flags.params())
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the majlis service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(flags.params())
			if err != nil {
				return err
			}
			st, err := svc.Status()
			if err != nil && !errors.Is(err, service.ErrNotInstalled) {
				return fmt.Errorf("service status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusText(st, err))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := newService(flags.params())
			if err != nil {
				return err
			}
			return svc.Run()
		},
	})
	return cmd
}

func statusText(st service.Status, err error) string {
	if errors.Is(err, service.ErrNotInstalled) {
		return "not installed"
	}
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
