package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"aegisd/pkg/types"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cl := &client{server: envStr("AEGISCTL_SERVER", "http://127.0.0.1:9200")}

	root := &cobra.Command{
		Use:           "aegisctl",
		Short:         "Inspect and control a running aegisd supervisor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cl.server, "server", cl.server, "Base URL of the aegisd API (defaults AEGISCTL_SERVER)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show supervisor status: services, memory ledger, boot report",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out types.StatusResponse
			if err := cl.get("/status", &out); err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), out)
			return nil
		},
	}

	models := &cobra.Command{
		Use:   "models",
		Short: "List inference backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out types.ModelsResponse
			if err := cl.get("/models", &out); err != nil {
				return err
			}
			for _, m := range out.Models {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-7s mem=%dMB cost=%d caps=%s\n",
					m.ID, m.Locality, m.EstMemMB, m.CostClass, strings.Join(m.Capabilities, ","))
			}
			return nil
		},
	}

	services := &cobra.Command{Use: "services", Short: "Manage registered services"}
	servicesList := &cobra.Command{
		Use:   "list",
		Short: "List services with health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out types.ServicesResponse
			if err := cl.get("/services/", &out); err != nil {
				return err
			}
			for _, s := range out.Services {
				eff := "degraded-deps"
				if s.EffectiveHealthy {
					eff = "ok"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-14s state=%-8s failures=%d restarts=%d deps=%s\n",
					s.Descriptor.ID, eff, s.Health.State, s.Health.ConsecutiveFailures,
					s.Health.RestartAttempts, strings.Join(s.Descriptor.DependsOn, ","))
			}
			return nil
		},
	}
	servicesRegister := &cobra.Command{
		Use:   "register <file.json>",
		Short: "Register a service from a descriptor file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var out types.ServiceStatus
			if err := cl.post("/services/", b, &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", out.Descriptor.ID, out.Health.State)
			return nil
		},
	}
	servicesRemove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Deregister a service and release its memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.del("/services/" + args[0])
		},
	}
	servicesReset := &cobra.Command{
		Use:   "reset <id>",
		Short: "Clear a failed service's restart budget so probing resumes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.post("/services/"+args[0]+"/reset", nil, nil)
		},
	}
	services.AddCommand(servicesList, servicesRegister, servicesRemove, servicesReset)

	var (
		priority  int
		deadline  string
		maxTokens int
		chain     []string
	)
	route := &cobra.Command{
		Use:   "route <capability> <payload>",
		Short: "Route a request to the best available backend",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.RouteRequest{
				Capability:    args[0],
				Payload:       args[1],
				Priority:      priority,
				MaxTokens:     maxTokens,
				FallbackChain: chain,
			}
			if deadline != "" {
				d, err := parseDuration(deadline)
				if err != nil {
					return fmt.Errorf("bad --deadline: %w", err)
				}
				req.Deadline = d
			}
			var out types.RouteResponse
			if err := cl.postJSON("/route", req, &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backend=%s cost=%d latency=%dms request_id=%s\n",
				out.BackendUsed, out.Cost, out.LatencyMS, out.RequestID)
			for _, a := range out.Attempts {
				if a.Reason != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  tried %s: %s\n", a.Backend, a.Reason)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Result)
			return nil
		},
	}
	route.Flags().IntVar(&priority, "priority", 0, "Scheduling priority; higher wins memory admission")
	route.Flags().StringVar(&deadline, "deadline", "", "Overall deadline, e.g. 30s")
	route.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum tokens to generate")
	route.Flags().StringSliceVar(&chain, "fallback", nil, "Explicit ordered fallback chain of backend ids")

	var limit int
	activityCmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent supervisor events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/activity"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}
			var out []activityEvent
			if err := cl.get(path, &out); err != nil {
				return err
			}
			for _, e := range out {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-18s %s\n", e.At.Format("15:04:05"), e.Name, e.Subject)
			}
			return nil
		},
	}
	activityCmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries")

	root.AddCommand(status, models, services, route, activityCmd)
	return root
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
