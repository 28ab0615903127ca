package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/auth"
	"github.com/trezcool/barakah/core/complaint"
	"github.com/trezcool/barakah/core/school"
	"github.com/trezcool/barakah/core/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	stdinFd          = int(os.Stdin.Fd())

	errNoPassword = errors.New("a password is required")
)

type commandLine struct {
	auth       *auth.Service
	complaints *complaint.Service
	school     *school.Service
	sessions   *session.Manager
	metrics    prometheus.Gatherer

	output      string
	showMetrics bool
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "barakah",
		Short:         "Barakah school and complaints administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cli.output {
			case outputJSON, outputYAML:
			default:
				return errors.Errorf("unsupported output %q, use json or yaml", cli.output)
			}
			if _, err := cli.auth.Init(cmd.Context()); err != nil {
				return errors.Wrap(err, "restoring session")
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cli.showMetrics && cli.metrics != nil {
				return printMetrics(cmd.ErrOrStderr(), cli.metrics)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&cli.output, "output", "o", outputJSON, "Output format: json or yaml")
	root.PersistentFlags().BoolVar(&cli.showMetrics, "metrics", false, "Print request metrics on stderr")

	root.AddCommand(
		cli.loginCmd(),
		cli.logoutCmd(),
		cli.whoamiCmd(),
		cli.resourceCmd(cli.school.Students, "Students"),
		cli.resourceCmd(cli.school.Teachers, "Teachers"),
		cli.coursesCmd(),
		cli.resourceCmd(cli.school.Buses, "Buses"),
		cli.subjectsCmd(),
		cli.dashboardCmd(),
		cli.complaintsCmd(),
		cli.employeesCmd(),
		cli.governmentsCmd(),
		cli.monitoringCmd(),
		cli.searchCmd(),
		cli.complaintCmd(),
	)
	return root
}

func (cli *commandLine) print(cmd *cobra.Command, v interface{}) error {
	return render(cmd.OutOrStdout(), cli.output, v)
}

func (cli *commandLine) loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in, the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password:")
			pwd, err := readPasswordFunc(stdinFd)
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return errors.Wrap(err, "reading password")
			}
			if len(pwd) == 0 {
				return errNoPassword
			}

			usr, err := cli.auth.Login(cmd.Context(), auth.Credentials{Email: email, Password: string(pwd)})
			if err != nil {
				return err
			}
			return cli.print(cmd, usr)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "The user's email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (cli *commandLine) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.auth.Logout(cmd.Context())
		},
	}
}

type whoami struct {
	State     string        `json:"state" yaml:"state"`
	User      *session.User `json:"user,omitempty" yaml:"user,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired   bool          `json:"expired" yaml:"expired"`
}

func (cli *commandLine) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := cli.sessions.Current(cmd.Context())
			if err != nil {
				return err
			}
			out := whoami{State: sess.State().String(), User: sess.User}
			// opaque tokens have no readable expiry
			if claims, err := session.ParseClaims(sess.Token); err == nil && !claims.ExpiresAt.IsZero() {
				out.ExpiresAt = &claims.ExpiresAt
				out.Expired = claims.Expired(time.Now())
			}
			return cli.print(cmd, out)
		},
	}
}

func (cli *commandLine) resourceCmd(res *school.Resource, title string) *cobra.Command {
	return &cobra.Command{
		Use:   res.Name() + " [id]",
		Short: title + ": list them all or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rec, err := res.Get(cmd.Context(), core.ID(args[0]))
				if err != nil {
					return err
				}
				return cli.print(cmd, rec)
			}
			records, err := res.List(cmd.Context())
			if err != nil {
				return err
			}
			return cli.print(cmd, records)
		},
	}
}

func (cli *commandLine) coursesCmd() *cobra.Command {
	var sessions bool
	cmd := cli.resourceCmd(cli.school.Courses.Resource, "Courses")
	list := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if !sessions {
			return list(cmd, args)
		}
		if len(args) == 0 {
			return errors.New("--sessions requires a course id")
		}
		records, err := cli.school.Courses.Sessions(cmd.Context(), core.ID(args[0]))
		if err != nil {
			return err
		}
		return cli.print(cmd, records)
	}
	cmd.Flags().BoolVar(&sessions, "sessions", false, "List the sessions of the course")
	return cmd
}

func (cli *commandLine) subjectsCmd() *cobra.Command {
	var options bool
	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "List subjects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if options {
				opts, err := cli.school.Subjects.Options(cmd.Context())
				if err != nil {
					return err
				}
				return cli.print(cmd, opts)
			}
			subjects, err := cli.school.Subjects.List(cmd.Context())
			if err != nil {
				return err
			}
			return cli.print(cmd, subjects)
		},
	}
	cmd.Flags().BoolVar(&options, "options", false, "Show subjects as label/value options")
	return cmd
}

func (cli *commandLine) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the school dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dashboard, err := cli.school.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			return cli.print(cmd, dashboard)
		},
	}
}

func (cli *commandLine) complaintsCmd() *cobra.Command {
	var page int
	var entityUser string
	cmd := &cobra.Command{
		Use:   "complaints",
		Short: "List complaints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var res *complaint.Page
			var err error
			if entityUser != "" {
				res, err = cli.complaints.ByEntity(cmd.Context(), core.ID(entityUser))
			} else {
				res, err = cli.complaints.Complaints(cmd.Context(), page)
			}
			if err != nil {
				return err
			}
			return cli.print(cmd, res)
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	cmd.Flags().StringVar(&entityUser, "entity-of", "", "List the complaints of the entity managed by this user id")
	return cmd
}

func (cli *commandLine) employeesCmd() *cobra.Command {
	var government string
	cmd := &cobra.Command{
		Use:   "employees",
		Short: "List the employees of a government entity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			employees, err := cli.complaints.Employees(cmd.Context(), core.ID(core.CleanString(government)))
			if err != nil {
				return err
			}
			return cli.print(cmd, employees)
		},
	}
	cmd.Flags().StringVarP(&government, "government", "g", "", "Government entity id")
	return cmd
}

func (cli *commandLine) governmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "governments",
		Short: "List government entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			governments, err := cli.complaints.Governments(cmd.Context())
			if err != nil {
				return err
			}
			return cli.print(cmd, governments)
		},
	}
}

func (cli *commandLine) monitoringCmd() *cobra.Command {
	var q complaint.MonitoringQuery
	cmd := &cobra.Command{
		Use:   "monitoring",
		Short: "Show the complaints monitoring board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := cli.complaints.Monitoring(cmd.Context(), q)
			if err != nil {
				return err
			}
			return cli.print(cmd, res)
		},
	}
	addMonitoringFlags(cmd, &q.Page, &q.PerPage, &q.Status)
	cmd.Flags().StringVar(&q.Search, "search", "", "Filter by reference number or citizen")
	return cmd
}

func (cli *commandLine) searchCmd() *cobra.Command {
	var q complaint.SearchQuery
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search complaints by reference number or citizen",
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Query = strings.Join(args, " ")
			res, err := cli.complaints.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			return cli.print(cmd, res)
		},
	}
	addMonitoringFlags(cmd, &q.Page, &q.PerPage, &q.Status)
	return cmd
}

func addMonitoringFlags(cmd *cobra.Command, page, perPage *int, status *string) {
	cmd.Flags().IntVarP(page, "page", "p", 1, "Page number")
	cmd.Flags().IntVar(perPage, "per-page", 10, "Entries per page")
	cmd.Flags().StringVar(status, "status", complaint.StatusAll, "Only show complaints having this status")
}

func (cli *commandLine) complaintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complaint REFERENCE",
		Short: "Show a complaint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := cli.complaints.Details(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return cli.print(cmd, details)
		},
	}
}
