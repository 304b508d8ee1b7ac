package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// BusService implements service.Interface for the bus server.
type BusService struct {
	app    *fx.App
	logger service.Logger
}

// NewBusService creates a new bus service.
func NewBusService() *BusService {
	return &BusService{}
}

// Start implements service.Interface.Start.
func (s *BusService) Start(svc service.Service) error {
	if s.logger != nil {
		s.logger.Info("Starting agentbus service")
	}

	go s.run()
	return nil
}

// Stop implements service.Interface.Stop.
func (s *BusService) Stop(svc service.Service) error {
	if s.logger != nil {
		s.logger.Info("Stopping agentbus service")
	}

	if s.app != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.app.Stop(ctx); err != nil {
			if s.logger != nil {
				s.logger.Errorf("Error stopping service: %v", err)
			}
			return err
		}
	}

	return nil
}

func (s *BusService) run() {
	s.app = newServerApp(true)
	s.app.Run()
}

// ServiceConfig returns the system service configuration.
func ServiceConfig() *service.Config {
	return &service.Config{
		Name:        "agentbus",
		DisplayName: "Agentbus",
		Description: "Shared message bus for coding agents",
		Arguments:   []string{"serve", "run"},
	}
}

func newService() (service.Service, *BusService, error) {
	prg := NewBusService()
	s, err := service.New(prg, ServiceConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("creating service: %w", err)
	}
	return s, prg, nil
}

// InstallService registers the bus with the system service manager.
func InstallService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Install(); err != nil {
		return fmt.Errorf("installing service: %w", err)
	}
	fmt.Println("Service installed successfully!")
	fmt.Println("Use 'agentbus serve start' to start the service")
	return nil
}

// UninstallService removes the bus from the system service manager.
func UninstallService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Uninstall(); err != nil {
		return fmt.Errorf("uninstalling service: %w", err)
	}
	fmt.Println("Service uninstalled successfully!")
	return nil
}

// StartService starts the installed service.
func StartService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return fmt.Errorf("starting service: %w", err)
	}
	fmt.Println("Service started successfully!")
	return nil
}

// StopService stops the running service.
func StopService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Stop(); err != nil {
		return fmt.Errorf("stopping service: %w", err)
	}
	fmt.Println("Service stopped successfully!")
	return nil
}

// RestartService stops and starts the service.
func RestartService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	if err := s.Restart(); err != nil {
		return fmt.Errorf("restarting service: %w", err)
	}
	fmt.Println("Service restarted successfully!")
	return nil
}

// StatusService reports the service's current state.
func StatusService() error {
	s, _, err := newService()
	if err != nil {
		return err
	}
	status, err := s.Status()
	if err != nil {
		return fmt.Errorf("getting service status: %w", err)
	}

	statusStr := "Unknown"
	switch status {
	case service.StatusRunning:
		statusStr = "Running"
	case service.StatusStopped:
		statusStr = "Stopped"
	}
	fmt.Printf("Service Status: %s\n", statusStr)
	return nil
}

// RunService runs under the service manager's control.
func RunService() error {
	s, prg, err := newService()
	if err != nil {
		return err
	}
	logger, err := s.Logger(nil)
	if err != nil {
		return fmt.Errorf("creating service logger: %w", err)
	}
	prg.logger = logger

	if err := s.Run(); err != nil {
		logger.Error(err)
		return err
	}
	return nil
}

var serveInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the bus as a system service",
	Long: `Install agentbus as a system service.

This registers the bus with the system service manager:
- Linux: systemd
- macOS: launchd
- Windows: Windows Service Manager

Requires administrator/root privileges.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := InstallService(); err != nil {
			serviceFail("installing", err)
		}
	},
}

var serveUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the bus service",
	Run: func(cmd *cobra.Command, args []string) {
		if err := UninstallService(); err != nil {
			serviceFail("uninstalling", err)
		}
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bus service",
	Run: func(cmd *cobra.Command, args []string) {
		if err := StartService(); err != nil {
			serviceFail("starting", err)
		}
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the bus service",
	Run: func(cmd *cobra.Command, args []string) {
		if err := StopService(); err != nil {
			serviceFail("stopping", err)
		}
	},
}

var serveRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the bus service",
	Run: func(cmd *cobra.Command, args []string) {
		if err := RestartService(); err != nil {
			serviceFail("restarting", err)
		}
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the bus service status",
	Run: func(cmd *cobra.Command, args []string) {
		if err := StatusService(); err != nil {
			fmt.Fprintf(os.Stderr, "Error checking service status: %v\n", err)
			os.Exit(1)
		}
	},
}

func serviceFail(action string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s service: %v\n", action, err)
	fmt.Fprintln(os.Stderr, "\nNote: Managing system services requires administrator privileges.")
	fmt.Fprintln(os.Stderr, "Please run with sudo (Linux/macOS) or as Administrator (Windows).")
	os.Exit(1)
}
