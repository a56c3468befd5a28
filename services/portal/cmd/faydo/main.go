package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"faydo/pkg/events"
	"faydo/pkg/telemetry"
	"faydo/services/portal/internal/account"
	"faydo/services/portal/internal/apiclient"
	"faydo/services/portal/internal/config"
	"faydo/services/portal/internal/credstore"
	"faydo/services/portal/internal/session"
	"faydo/services/portal/internal/stubapi"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "faydo",
		Short:         "Command-line portal for the Faydo loyalty platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newLoginCommand())
	cmd.AddCommand(newLogoutCommand())
	cmd.AddCommand(newWhoamiCommand())
	cmd.AddCommand(newRegisterCommand())
	cmd.AddCommand(newPackagesCommand())
	cmd.AddCommand(newOTPCommand())
	cmd.AddCommand(newStubAPICommand())
	return cmd
}

// app bundles the wired portal pieces behind one setup call.
type app struct {
	manager  *session.Manager
	client   *apiclient.Client
	logger   *log.Logger
	shutdown func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	shutdown, logger, err := telemetry.Init(ctx, "faydo-portal")
	if err != nil {
		return nil, err
	}

	client, err := apiclient.New(cfg.APIBaseURL, telemetry.NewHTTPClient(cfg.HTTPTimeout), logger)
	if err != nil {
		return nil, err
	}

	store, err := credstore.New(cfg.CredentialsFile, cfg.AgeIdentity)
	if err != nil {
		return nil, err
	}

	manager, err := session.NewManager(client, store, events.NewHub(), logger)
	if err != nil {
		return nil, err
	}

	return &app{manager: manager, client: client, logger: logger, shutdown: shutdown}, nil
}

func (a *app) close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.shutdown(shutdownCtx); err != nil {
		a.logger.Printf("level=warn msg=\"telemetry shutdown failed\" error=%q", err)
	}
}

func newLoginCommand() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.close(context.Background())

			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}

			if err := app.manager.Startup(ctx); err != nil {
				return err
			}
			user, err := app.manager.Login(ctx, username, password)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", user.DisplayName, user.Role)
			if user.Role == account.RoleCustomer && !user.ProfileComplete {
				fmt.Fprintln(cmd.OutOrStdout(), "profile is incomplete; finish it to unlock discounts")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and discard stored credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.close(context.Background())

			if err := app.manager.Startup(ctx); err != nil {
				return err
			}
			if err := app.manager.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.close(context.Background())

			if err := app.manager.Startup(ctx); err != nil {
				return err
			}

			snap := app.manager.Snapshot()
			if !snap.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user:     %s\n", snap.User.DisplayName)
			fmt.Fprintf(out, "username: %s\n", snap.User.Username)
			fmt.Fprintf(out, "role:     %s\n", snap.User.Role)
			if snap.LastValidatedAt.IsZero() {
				fmt.Fprintln(out, "validated: no (restored offline)")
			} else {
				fmt.Fprintf(out, "validated: %s\n", snap.LastValidatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newRegisterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newRegisterCustomerCommand())
	cmd.AddCommand(newRegisterBusinessCommand())
	return cmd
}

func newRegisterCustomerCommand() *cobra.Command {
	var reg apiclient.CustomerRegistration

	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Create a customer account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.close(context.Background())

			reg.Password, err = promptPassword("Password: ")
			if err != nil {
				return err
			}
			reg.PasswordConfirm, err = promptPassword("Confirm password: ")
			if err != nil {
				return err
			}

			if err := app.manager.Startup(ctx); err != nil {
				return err
			}
			user, err := app.manager.RegisterCustomer(ctx, reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", user.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&reg.Username, "username", "", "Account username")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&reg.PhoneNumber, "phone", "", "Phone number")
	cmd.Flags().StringVar(&reg.Gender, "gender", "", "Gender")
	cmd.Flags().StringVar(&reg.BirthDate, "birth-date", "", "Birth date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func newRegisterBusinessCommand() *cobra.Command {
	var reg apiclient.BusinessRegistration

	cmd := &cobra.Command{
		Use:   "business",
		Short: "Create a business account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.close(context.Background())

			reg.Password, err = promptPassword("Password: ")
			if err != nil {
				return err
			}
			reg.PasswordConfirm, err = promptPassword("Confirm password: ")
			if err != nil {
				return err
			}

			if err := app.manager.Startup(ctx); err != nil {
				return err
			}
			user, err := app.manager.RegisterBusiness(ctx, reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", user.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&reg.Username, "username", "", "Account username")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&reg.PhoneNumber, "phone", "", "Phone number")
	cmd.Flags().StringVar(&reg.Name, "name", "", "Business name")
	cmd.Flags().StringVar(&reg.Address, "address", "", "Business address")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newPackagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "packages",
		Short: "List discount packages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.close(context.Background())

			if err := app.manager.Startup(ctx); err != nil {
				return err
			}
			access, err := app.manager.RefreshAccessToken(ctx)
			if err != nil {
				if errors.Is(err, session.ErrNotAuthenticated) {
					return errors.New("log in first")
				}
				return err
			}

			packages, err := app.client.ListPackages(ctx, access)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, pkg := range packages {
				fmt.Fprintf(out, "%d\t%s\t%s\n", pkg.ID, pkg.BusinessName, pkg.Status)
			}
			return nil
		},
	}
}

func newOTPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otp",
		Short: "Phone verification codes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var phone string
	send := &cobra.Command{
		Use:   "send",
		Short: "Send a verification code to a phone number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(context.Background())

			if err := app.client.SendOTP(cmd.Context(), phone); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "code sent")
			return nil
		},
	}
	send.Flags().StringVar(&phone, "phone", "", "Phone number")
	_ = send.MarkFlagRequired("phone")

	var verifyPhone, code string
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Verify a code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close(context.Background())

			if err := app.client.VerifyOTP(cmd.Context(), verifyPhone, code); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "phone verified")
			return nil
		},
	}
	verify.Flags().StringVar(&verifyPhone, "phone", "", "Phone number")
	verify.Flags().StringVar(&code, "code", "", "Verification code")
	_ = verify.MarkFlagRequired("phone")
	_ = verify.MarkFlagRequired("code")

	cmd.AddCommand(send)
	cmd.AddCommand(verify)
	return cmd
}

func newStubAPICommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "stub-api",
		Short: "Run the in-memory development API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.StubListenAddr
			}

			shutdown, logger, err := telemetry.Init(ctx, "faydo-stubapi")
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Printf("level=warn msg=\"telemetry shutdown failed\" error=%q", err)
				}
			}()

			srv := &http.Server{
				Addr:              addr,
				Handler:           stubapi.New(logger).Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Printf("level=info msg=\"stub api listening\" addr=%q", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to FAYDO_STUB_LISTEN_ADDR)")
	return cmd
}

// promptPassword reads a password without echo when stdin is a terminal and
// falls back to a plain line read otherwise.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		defer fmt.Fprintln(os.Stderr)
		raw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return line, nil
}
