package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/OpenPeeDeeP/xdg"
	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"
	flags "github.com/jessevdk/go-flags"

	"github.com/anthillplatform/onlinelib/jsonrpc2"
	"github.com/anthillplatform/onlinelib/jsonrpc2/ws"
)

// Version of the binary, assigned during build.
var Version string = "dev"

const configFilename = "config.ini"

// Options contains the flag options
type Options struct {
	Verbose []bool `short:"v" long:"verbose" description:"Show verbose logging."`
	Version bool   `long:"version" description:"Print version and exit."`
	Config  string `long:"config" description:"INI file with default option values. (default: $XDG_CONFIG_HOME/anthill/onlinelib/config.ini)"`

	Call struct {
		URL       string        `long:"url" description:"Endpoint to call: ws://, wss://, http:// or https:// URL." required:"true"`
		Timeout   time.Duration `long:"timeout" description:"Time to wait for the response." default:"5s"`
		Transport string        `long:"transport" description:"Websocket implementation." choice:"gorilla" choice:"gobwas" default:"gorilla"`
		Args      struct {
			Method string `positional-arg-name:"method" description:"Method to call." required:"yes"`
			Params string `positional-arg-name:"params" description:"JSON encoded params, such as '[1, 2]' or '{\"id\": 1}'."`
		} `positional-args:"yes"`
	} `command:"call" description:"Call a method and print the result."`

	Notify struct {
		URL       string        `long:"url" description:"Endpoint to notify: ws://, wss://, http:// or https:// URL." required:"true"`
		Timeout   time.Duration `long:"timeout" description:"Time to wait for the connection." default:"5s"`
		Transport string        `long:"transport" description:"Websocket implementation." choice:"gorilla" choice:"gobwas" default:"gorilla"`
		Args      struct {
			Method string `positional-arg-name:"method" description:"Method to notify." required:"yes"`
			Params string `positional-arg-name:"params" description:"JSON encoded params."`
		} `positional-args:"yes"`
	} `command:"notify" description:"Send a notification, without waiting for a response."`

	Serve struct {
		Bind           string        `long:"bind" description:"Address and port to listen on." default:"0.0.0.0:8080"`
		AllowOrigin    []string      `long:"allow-origin" description:"Origin allowed to call the API from a browser, can be repeated. (\"*\" allows all)"`
		TLSHost        string        `long:"tlshost" description:"Acquire an ACME TLS cert for this host and listen on :443."`
		Transport      string        `long:"transport" description:"Websocket implementation." choice:"gorilla" choice:"gobwas" default:"gorilla"`
		Rate           float64       `long:"rate" description:"Requests per second served across all connections. (0 is unlimited)" default:"0"`
		Burst          int           `long:"burst" description:"Requests allowed to exceed --rate in a burst." default:"20"`
		HandlerTimeout time.Duration `long:"handler-timeout" description:"Time limit for a single request." default:"30s"`
	} `command:"serve" description:"Serve a demo JSON-RPC API over websocket and HTTP."`
}

const callUsage = `Examples:
* Ping a server over websocket:
  $ onlinelib call --url "ws://localhost:8080/" ping

* Call with positional params over HTTP:
  $ onlinelib call --url "http://localhost:8080/" echo '["hello", 42]'
`

var logLevels = []log.Level{
	log.Warning,
	log.Info,
	log.Debug,
}

// findConfigFile returns the INI file to load option defaults from, or "" if
// there is none.
func findConfigFile(overridePath string) (string, error) {
	if overridePath != "" {
		return overridePath, nil
	}
	path := filepath.Join(xdg.New("anthill", "onlinelib").ConfigHome(), configFilename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return path, nil
}

// loadConfig reads the --config flag ahead of the full parse, so that the
// INI defaults are applied before the command line overrides them.
func loadConfig(parser *flags.Parser, args []string) error {
	var pre struct {
		Config string `long:"config"`
	}
	if _, err := flags.NewParser(&pre, flags.IgnoreUnknown).ParseArgs(args); err != nil {
		return err
	}
	path, err := findConfigFile(pre.Config)
	if err != nil || path == "" {
		return err
	}
	if err := flags.NewIniParser(parser).ParseFile(path); err != nil {
		return ErrExplain{err, fmt.Sprintf("Failed to load config file %q.", path)}
	}
	return nil
}

func subcommand(cmd string, options Options) error {
	switch cmd {
	case "call":
		return runCall(options, os.Stdout)
	case "notify":
		return runNotify(options)
	case "serve":
		return runServe(options)
	}
	return fmt.Errorf("unknown command: %s", cmd)
}

func main() {
	options := Options{}
	parser := flags.NewParser(&options, flags.Default)
	parser.SubcommandsOptional = true
	if err := loadConfig(parser, os.Args[1:]); err != nil {
		exit(1, "%s\n", err)
	}

	p, err := parser.Parse()
	if err != nil {
		if p == nil {
			fmt.Println(err)
		}
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp && parser.Active != nil {
			// Print additional usage help when run with --help
			switch parser.Active.Name {
			case "call":
				exit(0, callUsage)
			}
		}
		return
	}

	if options.Version {
		fmt.Println(Version)
		os.Exit(0)
	}

	// Figure out the log level
	numVerbose := len(options.Verbose)
	if numVerbose >= len(logLevels) {
		numVerbose = len(logLevels) - 1
	}

	logLevel := logLevels[numVerbose]
	logWriter := os.Stderr

	SetLogger(golog.New(logWriter, logLevel))
	if logLevel == log.Debug {
		// Enable logging from subpackages
		jsonrpc2.SetLogger(logWriter)
		ws.SetLogger(logWriter)
	}

	if parser.Active == nil {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}
	cmd := parser.Active.Name
	err = subcommand(cmd, options)
	if err == nil {
		return
	}

	if err == io.EOF || jsonrpc2.ErrorCode(err) == jsonrpc2.ErrCodeConnectionClosed {
		exit(3, "Connection closed.\n")
	}

	exit(2, "%s failed: %s\n", cmd, explain(err))
}

// explain annotates err with a hint for the user.
func explain(err error) error {
	var explained ErrExplain
	if errors.As(err, &explained) {
		return err
	}

	var netErr net.Error
	var codeErr interface{ ErrorCode() int }
	switch {
	case errors.As(err, &netErr):
		return ErrExplain{err, `Disconnected from server unexpectedly. Could be a connectivity issue or the server is down. Try again?`}
	case errors.As(err, &codeErr):
		switch codeErr.ErrorCode() {
		case jsonrpc2.ErrCodeMethodNotFound:
			return ErrExplain{err, `The server does not provide this method. Run the "methods" method to list the ones it does.`}
		case jsonrpc2.ErrCodeInvalidParams:
			return ErrExplain{err, `The params do not match the method signature. Positional params are given as a JSON array.`}
		case jsonrpc2.ErrCodeTimeout:
			return ErrExplain{err, `No response in time. Try a longer --timeout?`}
		case jsonrpc2.ErrCodeTransport, jsonrpc2.ErrCodeNotConnected:
			return ErrExplain{err, `Failed to reach the server. Check the --url value and that the server is running.`}
		default:
			return ErrExplain{err, fmt.Sprintf(`The server returned an error (code %d).`, codeErr.ErrorCode())}
		}
	}
	return ErrExplain{err, fmt.Sprintf(`Error type %T is missing an explanation. Please open an issue at https://github.com/anthillplatform/onlinelib`, err)}
}

func exit(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}

// ErrExplain annotates an error with an explanation.
type ErrExplain struct {
	Cause       error
	Explanation string
}

func (err ErrExplain) Error() string {
	return fmt.Sprintf("%s\n -> %s", err.Cause, err.Explanation)
}

func (err ErrExplain) Unwrap() error {
	return err.Cause
}
