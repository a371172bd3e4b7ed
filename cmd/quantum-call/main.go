package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	pkgversion "github.com/sara-star-quant/quantum-call/pkg/version"
)

// Build-time variables (set via -ldflags)
var (
	version   = ""        // Set via -ldflags "-X main.version=x.y.z"
	buildTime = "unknown" // Set via -ldflags "-X main.buildTime=..."
	gitCommit = "unknown" // Set via -ldflags "-X main.gitCommit=..."
)

func getVersion() string {
	if version != "" {
		return version
	}
	return pkgversion.String()
}

func main() {
	// A .env file next to the binary is optional.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "demo":
		demoCommand()
	case "relay":
		relayCommand()
	case "call":
		callCommand()
	case "bench":
		benchCommand()
	case "version":
		fmt.Printf("quantum-call version %s\n", getVersion())
		if buildTime != "unknown" {
			fmt.Printf("Built: %s\n", buildTime)
		}
		if gitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", gitCommit)
		}
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`quantum-call - Post-quantum end-to-end encryption for calls

USAGE:
    quantum-call <command> [options]

COMMANDS:
    demo      Run a two-party call in one process
    relay     Run the signaling relay
    call      Join a relay room and secure a call
    bench     Run key agreement and frame benchmarks
    version   Print version information
    help      Show this help message

Run 'quantum-call <command> --help' for more information on a command.

EXAMPLES:
    # In-process demo with VP8 frames
    quantum-call demo --frames 10 --header vp8-payload

    # Start a relay with metrics and health endpoints
    quantum-call relay --listen :8443

    # Terminal 1 and 2: join the same room
    quantum-call call --relay http://localhost:8443 --room standup --peer alice --initiator
    quantum-call call --relay http://localhost:8443 --room standup --peer bob

    # Benchmark 100 key agreements and 10s of frame encryption
    quantum-call bench --handshakes 100 --frames --duration 10s

SECURITY:
    Key agreement: X25519 (RFC 7748) + ML-KEM-1024 (NIST FIPS 203)
    Secure if EITHER algorithm is secure; compare the SAS to rule out a
    man in the middle.`)
}

func demoCommand() {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	frames := fs.Int("frames", 5, "Number of frames to send in each direction")
	size := fs.Int("size", 160, "Payload size of each frame in bytes")
	header := fs.String("header", "fixed:1", "Header rule: none, opus, vp8-descriptor, vp8-payload, fixed:N")
	relay := fs.String("relay", "", "Relay URL. Empty uses an in-memory pipe")
	reject := fs.Bool("reject", false, "Reject the SAS on the responder side")
	verbose := fs.Bool("verbose", false, "Verbose output")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error, silent")
	logFormat := fs.String("log-format", "text", "Log format: text or json")
	tracing := fs.String("tracing", "none", "Tracing mode: none, simple, otel (requires -tags otel)")

	fs.Usage = func() {
		fmt.Println(`USAGE: quantum-call demo [options]

Run an initiator and a responder in one process: key agreement, SAS
comparison, and frames encrypted in both directions.

OPTIONS:`)
		fs.PrintDefaults()
		fmt.Println(`
EXAMPLES:
    # Default pipe transport
    quantum-call demo

    # Through a running relay
    quantum-call demo --relay http://localhost:8443

    # Watch a rejected SAS tear the call down
    quantum-call demo --reject --verbose`)
	}

	_ = fs.Parse(os.Args[2:])

	runDemo(demoOptions{
		frames:    *frames,
		size:      *size,
		header:    *header,
		relay:     *relay,
		reject:    *reject,
		verbose:   *verbose,
		logLevel:  *logLevel,
		logFormat: *logFormat,
		tracing:   *tracing,
	})
}

func relayCommand() {
	fs := flag.NewFlagSet("relay", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	listen := fs.String("listen", "", "Listen address (overrides config)")
	redisAddr := fs.String("redis", "", "Redis address for the mailbox (overrides config)")
	tracing := fs.String("tracing", "none", "Tracing mode: none, simple, otel (requires -tags otel)")

	fs.Usage = func() {
		fmt.Println(`USAGE: quantum-call relay [options]

Run the signaling relay. Peers join rooms at /rooms/{room}/ws?peer=<id>.
Metrics are served at /metrics and health at /health, /healthz, /readyz.

Environment variables QUANTUM_CALL_LISTEN, QUANTUM_CALL_REDIS_ADDR,
QUANTUM_CALL_REDIS_PASSWORD, QUANTUM_CALL_REDIS_DB and
QUANTUM_CALL_LOG_LEVEL override the config file. A .env file is loaded
if present.

OPTIONS:`)
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[2:])

	runRelay(*configPath, *listen, *redisAddr, *tracing)
}

func callCommand() {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	relay := fs.String("relay", "http://localhost:8443", "Relay URL")
	room := fs.String("room", "", "Room name shared with the other peer")
	peer := fs.String("peer", "", "Local peer id")
	initiator := fs.Bool("initiator", false, "Start key agreement (exactly one peer must set this)")
	cipher := fs.String("cipher", "aes-gcm", "Frame cipher: aes-gcm or chacha20 (both peers must match)")
	yes := fs.Bool("yes", false, "Accept the SAS without prompting")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error, silent")
	logFormat := fs.String("log-format", "text", "Log format: text or json")

	fs.Usage = func() {
		fmt.Println(`USAGE: quantum-call call [options]

Join a relay room, run key agreement with the other peer and compare the
SAS. Read the words aloud to each other: if they differ, someone is in the
middle.

OPTIONS:`)
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[2:])

	if *room == "" || *peer == "" {
		fmt.Fprintln(os.Stderr, "Error: --room and --peer are required")
		fs.Usage()
		os.Exit(1)
	}

	runCall(callOptions{
		relay:     *relay,
		room:      *room,
		peer:      *peer,
		initiator: *initiator,
		cipher:    *cipher,
		yes:       *yes,
		logLevel:  *logLevel,
		logFormat: *logFormat,
	})
}

func benchCommand() {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	handshakes := fs.Int("handshakes", 0, "Number of key agreements to benchmark (0 = skip)")
	frames := fs.Bool("frames", false, "Run frame encryption throughput benchmark")
	size := fs.String("size", "1KB", "Frame size (e.g., 160, 1KB, 64KB)")
	duration := fs.String("duration", "5s", "Duration for the frame benchmark (e.g., 10s, 1m)")
	cipher := fs.String("cipher", "aes-gcm", "Frame cipher: aes-gcm or chacha20")

	fs.Usage = func() {
		fmt.Println(`USAGE: quantum-call bench [options]

Run performance benchmarks for key agreement and frame encryption.

OPTIONS:`)
		fs.PrintDefaults()
		fmt.Println(`
EXAMPLES:
    # Benchmark 100 key agreements
    quantum-call bench --handshakes 100

    # Encrypt and decrypt 1KB frames for 10 seconds with ChaCha20-Poly1305
    quantum-call bench --frames --size 1KB --duration 10s --cipher chacha20`)
	}

	_ = fs.Parse(os.Args[2:])

	runBench(*handshakes, *frames, *size, *duration, *cipher)
}
