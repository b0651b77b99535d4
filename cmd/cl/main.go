package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/migrate"
	"caseline/internal/queue"
	"caseline/internal/repo"
	"caseline/internal/rules"
	"caseline/internal/server"
	"caseline/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "cl",
	Short: "Caseline CLI",
	Long: `Caseline routes compliance review cases through their lifecycle.
Cases move new -> unassigned -> assigned -> in-progress and end completed,
abandoned or rejected. Analysts work cases and escalate through a manager;
first- and second-line reviewers take up escalations, close them or return
them. Every transition is checked against the role permission matrix and
recorded in the case history.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CASELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("role", "manager", "acting role")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
}

func registerCommands() {
	rootCmd.AddCommand(caseCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(bulkCmd())
	rootCmd.AddCommand(reasonsCmd())
	rootCmd.AddCommand(actorCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
}

func cliActor() workflow.Actor {
	return workflow.Actor{
		ID:   viper.GetString("actor-id"),
		Role: domain.Role(viper.GetString("role")),
	}
}

func caseCmd() *cobra.Command {
	c := &cobra.Command{Use: "case", Short: "Manage cases"}
	c.AddCommand(caseCreateCmd())
	c.AddCommand(caseListCmd())
	c.AddCommand(caseShowCmd())
	c.AddCommand(caseHistoryCmd())
	c.AddCommand(caseNextCmd())
	c.AddCommand(caseActionsCmd())
	c.AddCommand(transitionCmd("triage", "Release a new case to the unassigned pool", func(cmd *cobra.Command, base workflow.RequestBase) (workflow.Request, error) {
		return workflow.TriageRequest{RequestBase: base}, nil
	}))
	c.AddCommand(assignCmd())
	c.AddCommand(transitionCmd("start", "Start work on a case", func(cmd *cobra.Command, base workflow.RequestBase) (workflow.Request, error) {
		return workflow.StartRequest{RequestBase: base}, nil
	}))
	c.AddCommand(escalateCmd())
	c.AddCommand(returnCmd())
	c.AddCommand(reviewCmd())
	c.AddCommand(completeCmd())
	c.AddCommand(transitionCmd("reopen", "Reopen a returned case", func(cmd *cobra.Command, base workflow.RequestBase) (workflow.Request, error) {
		return workflow.ReopenRequest{RequestBase: base}, nil
	}))
	c.AddCommand(reasonedTerminalCmd("abandon", "Abandon a case", func(base workflow.RequestBase, reason string) workflow.Request {
		return workflow.AbandonRequest{RequestBase: base, Reason: reason}
	}))
	c.AddCommand(reasonedTerminalCmd("reject", "Reject a case", func(base workflow.RequestBase, reason string) workflow.Request {
		return workflow.RejectRequest{RequestBase: base, Reason: reason}
	}))
	return c
}

func caseCreateCmd() *cobra.Command {
	var clientID, clientName, category, priority, risk, jurisdiction, lob, due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a case",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *workflow.Engine) error {
				c, err := e.CreateCase(ctx, workflow.CreateCaseInput{
					ClientID:       clientID,
					ClientName:     clientName,
					ClientCategory: domain.ClientCategory(category),
					Priority:       domain.Priority(priority),
					RiskRating:     domain.RiskRating(risk),
					Jurisdiction:   jurisdiction,
					LOB:            lob,
					DueDate:        due,
					Actor:          cliActor(),
				})
				if err != nil {
					return err
				}
				return printCase(c)
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "client identifier (required)")
	cmd.Flags().StringVar(&clientName, "client-name", "", "client display name")
	cmd.Flags().StringVar(&category, "category", "", "client category")
	cmd.Flags().StringVar(&priority, "priority", "", "case priority")
	cmd.Flags().StringVar(&risk, "risk", "", "client risk rating")
	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "jurisdiction")
	cmd.Flags().StringVar(&lob, "lob", "", "line of business")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	_ = cmd.MarkFlagRequired("client-id")
	return cmd
}

func caseListCmd() *cobra.Command {
	var status, assignee, lob string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cases, err := r.ListCases(ctx, repo.CaseFilters{
					Status:   domain.Status(status),
					Assignee: assignee,
					LOB:      lob,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				return printCases(cases)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&assignee, "assignee", "", "filter by assignee")
	cmd.Flags().StringVar(&lob, "lob", "", "filter by line of business")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows")
	return cmd
}

func caseShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				c, err := r.GetCase(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
}

func caseHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <case-id>",
		Short: "Show a case's audit history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				entries, err := r.ListHistory(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				t := newTable("TS", "ACTOR", "ROLE", "FROM", "TO", "REASON")
				for _, h := range entries {
					t.AppendRow(table.Row{h.TS, h.ActorID, h.Role, h.FromStatus, h.ToStatus, h.Reason})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	}
}

func caseNextCmd() *cobra.Command {
	var lob string
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Claim the next unassigned case",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *workflow.Engine) error {
				actor := cliActor()
				next, err := e.Repo.NextUnassignedCase(ctx, lob)
				if errors.Is(err, repo.ErrNotFound) {
					fmt.Println("no unassigned cases")
					return nil
				}
				if err != nil {
					return err
				}
				c, err := e.ApplyTransition(ctx, workflow.AssignRequest{
					RequestBase: workflow.RequestBase{Case: next.ID, Actor: actor},
					Assignee:    actor.ID,
				})
				if err != nil {
					return err
				}
				return printCase(c)
			})
		},
	}
	cmd.Flags().StringVar(&lob, "lob", "", "restrict to a line of business")
	return cmd
}

func caseActionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions <case-id>",
		Short: "List statuses the acting role may move the case to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				c, err := r.GetCase(ctx, args[0])
				if err != nil {
					return err
				}
				targets := rules.PermittedTargets(cliActor().Role, c.Status)
				return printJSON(map[string]any{
					"case_id": c.ID,
					"status":  c.Status,
					"role":    cliActor().Role,
					"targets": targets,
				})
			})
		},
	}
}

func transitionCmd(use, short string, build func(cmd *cobra.Command, base workflow.RequestBase) (workflow.Request, error)) *cobra.Command {
	var expectVersion int64
	cmd := &cobra.Command{
		Use:   use + " <case-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *workflow.Engine) error {
				req, err := build(cmd, workflow.RequestBase{
					Case:            args[0],
					Actor:           cliActor(),
					ExpectedVersion: expectVersion,
				})
				if err != nil {
					return err
				}
				c, err := e.ApplyTransition(ctx, req)
				if err != nil {
					return err
				}
				return printCase(c)
			})
		},
	}
	cmd.Flags().Int64Var(&expectVersion, "expect-version", 0, "fail if the case version no longer matches")
	return cmd
}

func assignCmd() *cobra.Command {
	var assignee string
	cmd := transitionCmd("assign", "Assign or reassign a case", func(cmd *cobra.Command, base workflow.RequestBase) (workflow.Request, error) {
		return workflow.AssignRequest{RequestBase: base, Assignee: assignee}, nil
	})
	cmd.Flags().StringVar(&assignee, "to", "", "assignee actor id (required)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func escalateCmd() *cobra.Command {
	var escType, managerID, comment string
	var reasonIDs []string
	cmd := transitionCmd("escalate", "Escalate a case to a review track", func(cmd *cobra.Command, base workflow.RequestBase) (workflow.Request, error) {
		return workflow.EscalateRequest{
			RequestBase: base,
			Type:        domain.EscalationType(escType),
			ReasonIDs:   reasonIDs,
			ManagerID:   managerID,
			Comment:     comment,
		}, nil
	})
	cmd.Flags().StringVar(&escType, "type", string(domain.EscalationFirstLine), "escalation type")
	cmd.Flags().StringSliceVar(&reasonIDs, "reason", nil, "escalation reason id (repeatable, required)")
	cmd.Flags().StringVar(&managerID, "manager", "", "approving manager (analyst escalations)")
	cmd.Flags().StringVar(&comment, "comment", "", "free-text comment")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func returnCmd() *cobra.Command {
	var reason string
	cmd := transitionCmd("return", "Return a case to its previous assignee", func(cmd *cobra.Command, base workflow.RequestBase) (workflow.Request, error) {
		return workflow.ReturnRequest{RequestBase: base, Reason: reason}, nil
	})
	cmd.Flags().StringVar(&reason, "reason", "", "return reason (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func reviewCmd() *cobra.Command {
	var reasons []string
	cmd := transitionCmd("review", "Park a case for manual review", func(cmd *cobra.Command, base workflow.RequestBase) (workflow.Request, error) {
		return workflow.ManualReviewRequest{RequestBase: base, Reasons: reasons}, nil
	})
	cmd.Flags().StringSliceVar(&reasons, "reason", nil, "review reason (repeatable)")
	return cmd
}

func completeCmd() *cobra.Command {
	var disposition string
	cmd := transitionCmd("complete", "Complete a case", func(cmd *cobra.Command, base workflow.RequestBase) (workflow.Request, error) {
		return workflow.CompleteRequest{RequestBase: base, Disposition: domain.Disposition(disposition)}, nil
	})
	cmd.Flags().StringVar(&disposition, "disposition", "", "closure disposition (required)")
	_ = cmd.MarkFlagRequired("disposition")
	return cmd
}

func reasonedTerminalCmd(use, short string, build func(base workflow.RequestBase, reason string) workflow.Request) *cobra.Command {
	var reason string
	cmd := transitionCmd(use, short, func(cmd *cobra.Command, base workflow.RequestBase) (workflow.Request, error) {
		return build(base, reason), nil
	})
	cmd.Flags().StringVar(&reason, "reason", "", "free-text reason")
	return cmd
}

func queueCmd() *cobra.Command {
	var assignee, lob string
	cmd := &cobra.Command{
		Use:       "queue <all|active|escalations|completed|returned>",
		Short:     "List a workbasket queue",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"all", "active", "escalations", "completed", "returned"},
		RunE: func(cmd *cobra.Command, args []string) error {
			q := queue.Queue(args[0])
			if !q.Valid() {
				return fmt.Errorf("unknown queue %q", args[0])
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cases, err := r.ListCases(ctx, repo.CaseFilters{Assignee: assignee, LOB: lob})
				if err != nil {
					return err
				}
				now := time.Now()
				matched := queue.Filter(cases, q, now)
				if viper.GetBool("json") {
					return printJSON(matched)
				}
				t := newTable("ID", "CLIENT", "STATUS", "ASSIGNEE", "PRIORITY", "DAYS")
				for _, c := range matched {
					t.AppendRow(table.Row{c.ID, c.ClientID, c.Status, c.Assignee, c.Priority, queue.DaysIn(c, now)})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&assignee, "assignee", "", "restrict to an assignee's workbasket")
	cmd.Flags().StringVar(&lob, "lob", "", "restrict to a line of business")
	return cmd
}

func bulkCmd() *cobra.Command {
	bulk := &cobra.Command{Use: "bulk", Short: "Bulk case operations"}

	var assignee string
	reassign := &cobra.Command{
		Use:   "reassign <case-id>...",
		Short: "Reassign many cases to one assignee",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *workflow.Engine) error {
				res, err := e.BulkReassign(ctx, cliActor(), args, assignee)
				if err != nil {
					return err
				}
				return printBulkResult(res)
			})
		},
	}
	reassign.Flags().StringVar(&assignee, "to", "", "assignee actor id (required)")
	_ = reassign.MarkFlagRequired("to")
	bulk.AddCommand(reassign)

	var reason string
	abandon := &cobra.Command{
		Use:   "abandon <case-id>...",
		Short: "Abandon many cases",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *workflow.Engine) error {
				res, err := e.BulkAbandon(ctx, cliActor(), args, reason)
				if err != nil {
					return err
				}
				return printBulkResult(res)
			})
		},
	}
	abandon.Flags().StringVar(&reason, "reason", "", "free-text reason")
	bulk.AddCommand(abandon)

	return bulk
}

func printBulkResult(res workflow.BulkResult) error {
	if viper.GetBool("json") {
		type outcome struct {
			CaseID string `json:"case_id"`
			OK     bool   `json:"ok"`
			Error  string `json:"error,omitempty"`
		}
		out := make([]outcome, 0, len(res.Outcomes))
		for _, o := range res.Outcomes {
			item := outcome{CaseID: o.CaseID, OK: o.Err == nil}
			if o.Err != nil {
				item.Error = o.Err.Error()
			}
			out = append(out, item)
		}
		return printJSON(map[string]any{"succeeded": res.Succeeded, "failed": res.Failed, "outcomes": out})
	}
	t := newTable("CASE", "RESULT", "DETAIL")
	for _, o := range res.Outcomes {
		if o.Err == nil {
			t.AppendRow(table.Row{o.CaseID, "ok", string(o.Case.Status)})
		} else {
			t.AppendRow(table.Row{o.CaseID, "error", o.Err.Error()})
		}
	}
	fmt.Println(t.Render())
	fmt.Printf("%d succeeded, %d failed\n", res.Succeeded, res.Failed)
	return nil
}

func reasonsCmd() *cobra.Command {
	var escType string
	cmd := &cobra.Command{
		Use:   "reasons",
		Short: "List escalation reasons",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			catalog, err := cfg.Catalog()
			if err != nil {
				return err
			}
			var reasons []domain.EscalationReason
			if escType != "" {
				reasons = catalog.ForType(domain.EscalationType(escType))
			} else {
				reasons = catalog.All()
			}
			if viper.GetBool("json") {
				return printJSON(reasons)
			}
			t := newTable("ID", "LABEL", "TARGET", "MANAGER")
			for _, r := range reasons {
				t.AppendRow(table.Row{r.ID, r.Label, r.TargetRole, r.RequiresManager})
			}
			fmt.Println(t.Render())
			return nil
		},
	}
	cmd.Flags().StringVar(&escType, "type", "", "restrict to an escalation type")
	return cmd
}

func actorCmd() *cobra.Command {
	actor := &cobra.Command{Use: "actor", Short: "Manage actors"}

	var name, role, lob string
	add := &cobra.Command{
		Use:   "add <actor-id>",
		Short: "Register an actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := domain.Role(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			return withRepo(cmd.Context(), func(ctx context.Context, rp repo.Repo) error {
				a := domain.Actor{
					ID:        args[0],
					Name:      name,
					Role:      r,
					LOB:       lob,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := rp.InsertActor(ctx, a); err != nil {
					return err
				}
				return printJSON(a)
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&role, "role", string(domain.RoleAnalyst), "actor role")
	add.Flags().StringVar(&lob, "lob", "", "line of business")
	actor.AddCommand(add)

	actor.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List actors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				actors, err := r.ListActors(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(actors)
				}
				t := newTable("ID", "NAME", "ROLE", "LOB")
				for _, a := range actors {
					t.AppendRow(table.Row{a.ID, a.Name, a.Role, a.LOB})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	})

	return actor
}

func apikeyCmd() *cobra.Command {
	apikey := &cobra.Command{Use: "apikey", Short: "Manage API keys"}

	var actorID, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetActor(ctx, actorID); err != nil {
					return fmt.Errorf("actor %s: %w", actorID, err)
				}
				raw := uuid.NewString() + uuid.NewString()
				k := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   actorID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, k); err != nil {
					return err
				}
				return printJSON(map[string]string{"id": k.ID, "actor_id": k.ActorID, "key": raw})
			})
		},
	}
	create.Flags().StringVar(&actorID, "actor", "", "actor the key authenticates (required)")
	create.Flags().StringVar(&name, "name", "", "key label")
	_ = create.MarkFlagRequired("actor")
	apikey.AddCommand(create)

	apikey.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				t := newTable("ID", "ACTOR", "NAME", "CREATED")
				for _, k := range keys {
					t.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	})

	apikey.AddCommand(&cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	})

	return apikey
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for the acting actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("CASELINE_JWT_SECRET")
			actor := cliActor()
			token, err := server.IssueJWT(secret, actor.ID, actor.Role)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func logCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent engine events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				t := newTable("ID", "TS", "TYPE", "CASE", "ACTOR")
				for _, e := range events {
					t.AppendRow(table.Row{e.ID, e.TS, e.Type, e.CaseID, e.ActorID})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}

	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default caseline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Default().Write(path); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})

	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath())
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})

	return cfg
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			fmt.Println("migrations applied,", db.Path(viper.GetString("workspace")))
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			e := workflow.NewEngine(conn, logger)
			catalog, err := cfg.Catalog()
			if err != nil {
				return err
			}
			e.Catalog = catalog

			secret := os.Getenv("CASELINE_JWT_SECRET")
			if secret == "" {
				secret = cfg.Server.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("CASELINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, Logger: logger},
				Log:      logger,
			})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(e, cfg.Webhooks, logger)

			if addr == "" {
				addr = cfg.Server.Addr
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving caseline api", zap.String("addr", addr), zap.String("base_path", basePath))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, *workflow.Engine) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	e := workflow.NewEngine(conn, zap.NewNop())
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	e.Catalog = catalog
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func configPath() string {
	return filepath.Join(viper.GetString("workspace"), "caseline.yml")
}

func newTable(headers ...any) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(headers))
	return t
}

func printCase(c domain.Case) error {
	if viper.GetBool("json") {
		return printJSON(c)
	}
	fmt.Printf("%s  %s  assignee=%s  version=%d\n", c.ID, c.Status, orDash(c.Assignee), c.Version)
	return nil
}

func printCases(cases []domain.Case) error {
	if viper.GetBool("json") {
		return printJSON(cases)
	}
	t := newTable("ID", "CLIENT", "STATUS", "ASSIGNEE", "PRIORITY", "CREATED")
	for _, c := range cases {
		t.AppendRow(table.Row{c.ID, c.ClientID, c.Status, orDash(c.Assignee), c.Priority, c.CreatedAt})
	}
	fmt.Println(t.Render())
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
