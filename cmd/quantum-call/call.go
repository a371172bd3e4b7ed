package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	qerrors "github.com/sara-star-quant/quantum-call/internal/errors"
	"github.com/sara-star-quant/quantum-call/pkg/crypto"
	"github.com/sara-star-quant/quantum-call/pkg/metrics"
	"github.com/sara-star-quant/quantum-call/pkg/session"
	"github.com/sara-star-quant/quantum-call/pkg/signaling"
)

type callOptions struct {
	relay     string
	room      string
	peer      string
	initiator bool
	cipher    string
	yes       bool
	logLevel  string
	logFormat string
}

func runCall(opts callOptions) {
	_, observerFactory, logger, err := setupObservability(opts.logLevel, opts.logFormat, "none",
		metrics.Fields{"room": opts.room, "peer": opts.peer})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cs, err := parseCipher(opts.cipher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	suite, err := crypto.Init(crypto.WithCipherSuite(cs))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: crypto init failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Joining room %q on %s as %s...\n", opts.room, opts.relay, opts.peer)
	ch, err := signaling.Dial(ctx, opts.relay, opts.room, opts.peer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = ch.Close() }()

	role := session.RoleResponder
	if opts.initiator {
		role = session.RoleInitiator
	}

	sess, err := session.New(session.Config{
		Suite:           suite,
		Role:            role,
		Channel:         ch,
		ObserverFactory: observerFactory,
		Logger:          logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = sess.Close() }()

	if role == session.RoleInitiator {
		if err := sess.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Println("Waiting for the other peer...")

	if err := sess.Handshake(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: key agreement failed: %v\n", err)
		os.Exit(1)
	}

	code, err := sess.SAS()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Read this aloud and compare with the other side:")
	fmt.Printf("    %s\n", code.Words)
	fmt.Printf("    %s  (%s)\n", code.Base32, code.Numeric)
	fmt.Println()

	if !opts.yes && !confirm("Do the words match? [y/N] ") {
		_ = sess.Reject(ctx)
		fmt.Println("✗ SAS rejected; call abandoned")
		os.Exit(2)
	}

	if err := sess.Accept(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Call secured with %s. Press Ctrl+C to hang up.\n", suite.CipherSuite())

	err = sess.AwaitHangup(ctx)
	switch {
	case errors.Is(err, qerrors.ErrRemoteHangup):
		fmt.Println("Peer hung up")
	case errors.Is(err, context.Canceled):
		fmt.Println("\nHanging up")
	case errors.Is(err, qerrors.ErrChannelClosed):
		fmt.Println("Relay connection closed")
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
