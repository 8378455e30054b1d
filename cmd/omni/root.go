package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"omni/go-backend/internal/adapters/grpcrpc"
	"omni/go-backend/internal/client"
	"omni/go-backend/internal/identity"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	serverURL  string
	grpcTarget string
	to         string
	keyFile    string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "omni",
		Short:         "Talk to omni servers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.serverURL, "server", "http://127.0.0.1:8000", "Server HTTP URL")
	flags.StringVar(&opts.grpcTarget, "grpc", "", "gRPC target; overrides --server when set")
	flags.StringVar(&opts.to, "to", "", "Expected server identity (anonymous accepts any)")
	flags.StringVar(&opts.keyFile, "key-file", "", "Mnemonic key file; requests are anonymous without one")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Per-call timeout")

	root.AddCommand(
		newIDCmd(opts),
		newStatusCmd(opts),
		newCallCmd(opts),
		newAccountCmd(opts),
	)
	return root
}

// dial builds a client from the global flags. The returned func releases the
// transport.
func (o *globalOptions) dial() (*client.Client, func(), error) {
	to := identity.Anonymous()
	if strings.TrimSpace(o.to) != "" {
		parsed, err := identity.Parse(o.to)
		if err != nil {
			return nil, nil, fmt.Errorf("--to: %w", err)
		}
		to = parsed
	}

	var signer *identity.KeyPair
	if o.keyFile != "" {
		kp, err := identity.LoadKeyFile(o.keyFile, os.Getenv("OMNI_KEY_PASSPHRASE"))
		if err != nil {
			return nil, nil, err
		}
		signer = kp
	}

	var (
		sender  client.Sender
		release = func() {}
	)
	if o.grpcTarget != "" {
		s, err := grpcrpc.Dial(o.grpcTarget)
		if err != nil {
			return nil, nil, err
		}
		s.Timeout = o.timeout
		sender = s
		release = func() { _ = s.Close() }
	} else {
		h := client.NewHTTPSender(o.serverURL)
		h.Client.Timeout = o.timeout
		sender = h
	}

	if signer == nil {
		return client.New(sender, to, nil), release, nil
	}
	return client.New(sender, to, signer), release, nil
}
