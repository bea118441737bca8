package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MrEthical07/goMFA/internal/config"
	"github.com/MrEthical07/goMFA/internal/logger"
	"github.com/MrEthical07/goMFA/secret"
	"github.com/MrEthical07/goMFA/store/sqlstore"
	"github.com/rs/zerolog"
)

// maxInput bounds what is read from stdin.
const maxInput = 1 << 20

type app struct {
	configPath string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

func (a *app) loadConfig() (*config.Config, error) {
	return config.Load(a.configPath)
}

func (a *app) logger(cfg *config.Config) *logger.Logger {
	l := logger.New("mfactl", a.stderr)
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return logger.Wrap(l.Level(level))
}

func (a *app) cipher(cfg *config.Config) (*secret.Cipher, error) {
	return secret.New(cfg.MasterKey,
		secret.WithIterations(cfg.KDFIterations),
		secret.WithLogger(a.logger(cfg).Child("secret").Logger),
	)
}

func (a *app) readInput() ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(a.stdin, maxInput+1))
	if err != nil {
		return nil, fmt.Errorf("error reading stdin: %w", err)
	}
	if len(data) > maxInput {
		return nil, errors.New("input too large")
	}
	return data, nil
}

func (a *app) readEnvelope() (*secret.Envelope, error) {
	data, err := a.readInput()
	if err != nil {
		return nil, err
	}
	var env secret.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.New("stdin is not an envelope")
	}
	return &env, nil
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func (a *app) keygen(args []string) error {
	fs := newFlagSet("keygen", a.stderr)
	n := fs.Int("bytes", 32, "random bytes; the key is twice as many hex characters")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n < 16 {
		return errors.New("bytes must be >= 16")
	}

	key, err := secret.GenerateToken(*n)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, key)
	return nil
}

func (a *app) encrypt(ctx context.Context, args []string) error {
	if err := newFlagSet("encrypt", a.stderr).Parse(args); err != nil {
		return err
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	c, err := a.cipher(cfg)
	if err != nil {
		return err
	}
	data, err := a.readInput()
	if err != nil {
		return err
	}
	defer clear(data)

	env, err := c.Encrypt(ctx, data)
	if err != nil {
		return err
	}
	return a.writeJSON(env)
}

func (a *app) decrypt(ctx context.Context, args []string) error {
	if err := newFlagSet("decrypt", a.stderr).Parse(args); err != nil {
		return err
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	c, err := a.cipher(cfg)
	if err != nil {
		return err
	}
	env, err := a.readEnvelope()
	if err != nil {
		return err
	}

	plaintext, err := c.DecryptBytes(ctx, env)
	if err != nil {
		return err
	}
	defer clear(plaintext)
	_, err = a.stdout.Write(plaintext)
	return err
}

func (a *app) rotate(ctx context.Context, args []string) error {
	fs := newFlagSet("rotate", a.stderr)
	oldEnv := fs.String("old-key-env", "MFA_OLD_MASTER_KEY", "environment variable holding the current master key")
	newEnv := fs.String("new-key-env", "MFA_MASTER_KEY", "environment variable holding the new master key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	oldKey, newKey := os.Getenv(*oldEnv), os.Getenv(*newEnv)
	if oldKey == "" || newKey == "" {
		return fmt.Errorf("%s and %s must both be set", *oldEnv, *newEnv)
	}
	env, err := a.readEnvelope()
	if err != nil {
		return err
	}

	rotated, err := secret.Rotate(ctx, oldKey, newKey, env, secret.WithIterations(cfg.KDFIterations))
	if err != nil {
		return err
	}
	return a.writeJSON(rotated)
}

func (a *app) hash(args []string) error {
	if err := newFlagSet("hash", a.stderr).Parse(args); err != nil {
		return err
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	c, err := a.cipher(cfg)
	if err != nil {
		return err
	}
	data, err := a.readInput()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, c.Hash(strings.TrimRight(string(data), "\r\n")))
	return nil
}

func (a *app) migrate(ctx context.Context, args []string) error {
	fs := newFlagSet("migrate", a.stderr)
	driver := fs.String("driver", "", "pgx or sqlite; defaults to the configured store driver")
	dsn := fs.String("dsn", "", "data source name; defaults to the configured store dsn")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if *driver == "" {
		*driver = cfg.Store.Driver
	}
	if *dsn == "" {
		*dsn = cfg.Store.DSN
	}

	dialect := sqlstore.Dialect(strings.ToLower(*driver))
	db, err := sqlstore.Open(ctx, dialect, *dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlstore.Migrate(ctx, db, dialect); err != nil {
		return err
	}
	a.logger(cfg).Info().Str("driver", string(dialect)).Msg("schema up to date")
	return nil
}

func (a *app) report(ctx context.Context, args []string) error {
	if err := newFlagSet("report", a.stderr).Parse(args); err != nil {
		return err
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	e, closeFn, err := a.engine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	return a.writeJSON(e.SecurityReport())
}

func (a *app) lockout(ctx context.Context, args []string) error {
	fs := newFlagSet("lockout", a.stderr)
	principal := fs.String("principal", "", "principal id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *principal == "" {
		return errors.New("-principal is required")
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	e, closeFn, err := a.engine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	status, err := e.LockoutStatus(ctx, *principal)
	if err != nil {
		return err
	}
	return a.writeJSON(status)
}
