package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	ownid "github.com/ownid/ownid-go"
	"github.com/ownid/ownid-go/backend"
	"github.com/ownid/ownid-go/flowhost"
	"github.com/ownid/ownid-go/internal/logger"
	"github.com/ownid/ownid-go/metrics/export/prometheus"
)

// FlowOptions are the flags shared by register and login.
type FlowOptions struct {
	Email               string
	Name                string
	Password            string
	SeedPasswordAccount bool
	Cancel              bool
	Metrics             bool
	Audit               bool
}

func (f *FlowOptions) addFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.Email, "email", "", "email to authenticate")
	flags.StringVar(&f.Name, "name", "", "display name (default: flow.display-name)")
	flags.StringVar(&f.Password, "password", "", "password used when the account must be linked")
	flags.BoolVar(&f.SeedPasswordAccount, "seed-password-account", false, "create an email/password account for --email first")
	flags.BoolVar(&f.Cancel, "cancel", false, "abandon the flow instead of approving it")
	flags.BoolVar(&f.Metrics, "metrics", false, "print dispatcher metrics after the flow")
	flags.BoolVar(&f.Audit, "audit", false, "write audit events as JSON to stderr")
}

// environment is one wired set of collaborators.
type environment struct {
	redis   redis.UniversalClient
	host    *flowhost.Host
	backend *backend.Service
	closers []func()
}

func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func newEnvironment(opts *RootOptions, approver flowhost.Approver) (*environment, error) {
	env := &environment{}
	cfg := opts.Config

	addr := cfg.Redis.Addr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start in-process redis: %w", err)
		}
		env.closers = append(env.closers, mr.Close)
		addr = mr.Addr()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	env.closers = append(env.closers, func() { _ = rdb.Close() })
	env.redis = rdb

	if err := rdb.Ping(opts.Context).Err(); err != nil {
		env.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}

	hostCfg := flowhost.DefaultConfig()
	hostCfg.KeyPrefix = cfg.Backend().KeyPrefix
	host, err := flowhost.New(rdb, hostCfg, approver, logger.Component("flowhost"))
	if err != nil {
		env.Close()
		return nil, err
	}
	env.host = host
	env.closers = append(env.closers, host.Wait)

	beCfg := cfg.Backend()
	beCfg.AssertionKey = host.PublicKey()
	svc, err := backend.New(rdb, beCfg, logger.Component("backend"))
	if err != nil {
		env.Close()
		return nil, err
	}
	env.backend = svc
	return env, nil
}

// runFlows runs one flow per purpose, in order, on a single client and
// reports each on the command's output.
func runFlows(cmd *cobra.Command, opts *RootOptions, flow *FlowOptions, purposes ...ownid.Purpose) error {
	approver := flowhost.Always(flowhost.Approve)
	if flow.Cancel {
		approver = flowhost.Always(flowhost.Cancel)
	}
	env, err := newEnvironment(opts, approver)
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	ctx := opts.Context

	name := flow.Name
	if name == "" {
		name = opts.Config.Flow.DisplayName
	}
	if flow.SeedPasswordAccount {
		if _, err := env.backend.CreatePasswordAccount(ctx, name, flow.Email, flow.Password); err != nil {
			return fmt.Errorf("seed password account: %w", err)
		}
		fmt.Fprintf(out, "seeded password account for %s\n", flow.Email)
	}

	builder := ownid.New().
		WithConfig(opts.Config.Client()).
		WithSDK(env.host).
		WithBackend(env.backend).
		WithPresenter(newConsolePresenter(out)).
		WithLogger(logger.Component("ownid")).
		WithCancelHandler(func(error) { fmt.Fprintln(out, "flow cancelled") })
	if flow.Audit || opts.Config.Audit.Enabled {
		cfg := opts.Config.Client()
		cfg.Audit.Enabled = true
		builder = builder.WithConfig(cfg).WithAuditSink(ownid.NewJSONWriterSink(cmd.ErrOrStderr()))
	}
	client, err := builder.Build()
	if err != nil {
		return err
	}
	defer client.Close()

	client.SetIdentity(ownid.Identity{DisplayName: name, Email: flow.Email, Password: flow.Password})

	for _, purpose := range purposes {
		if err := start(ctx, client, purpose, flow.Email); err != nil {
			return err
		}
		if _, err := client.Await(ctx); err != nil && !ownid.IsCancelled(err) {
			return err
		}
	}

	if flow.Metrics {
		if err := prometheus.New(client).Write(out); err != nil {
			return err
		}
	}
	return nil
}

func start(ctx context.Context, client *ownid.Client, purpose ownid.Purpose, email string) error {
	var err error
	if purpose == ownid.PurposeRegister {
		err = client.StartRegister(ctx, email)
	} else {
		err = client.StartLogin(ctx, email)
	}
	if errors.Is(err, ownid.ErrEmailRequired) || errors.Is(err, ownid.ErrEmailInvalid) {
		// Already shown by the presenter.
		return fmt.Errorf("invalid email: %w", err)
	}
	return err
}

type consolePresenter struct {
	out io.Writer
}

func newConsolePresenter(out io.Writer) *consolePresenter {
	return &consolePresenter{out: out}
}

func (p *consolePresenter) ShowMessage(o ownid.Outcome) {
	if o.Session != nil {
		fmt.Fprintf(p.out, "%s (uid %s)\n", o.Message, o.Session.UserID)
		return
	}
	fmt.Fprintln(p.out, o.Message)
}

func (p *consolePresenter) ShowInputError(message string) {
	if message != "" {
		fmt.Fprintf(p.out, "email: %s\n", message)
	}
}

func (p *consolePresenter) SetState(s ownid.UIState) {
	fmt.Fprintf(p.out, "state: %s\n", s)
}
