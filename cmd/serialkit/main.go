// cmd/serialkit/main.go
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"serialkit/internal/config"
	"serialkit/internal/utils"
	"serialkit/pkg/serialkit"
	_ "serialkit/pkg/serialkit/usbbulk"
)

const usage = `usage: serialkit <command> [flags]

commands:
  ports            list serial ports
  send <command>   send a command and print the response
  read             read once from the port and print the bytes
  serve            run the HTTP bridge for one port

run "serialkit <command> --help" for flags`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "serialkit: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	name, args := args[0], args[1:]
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML config file")
	config.RegisterFlags(flags)

	parseName := "raw"
	readSize := serialkit.DefaultReadChunk
	switch name {
	case "ports", "serve":
	case "send":
		flags.StringVar(&parseName, "parse", "raw", "response parser: raw, string, lines, kv")
	case "read":
		flags.IntVar(&readSize, "size", serialkit.DefaultReadChunk, "maximum bytes to read")
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", name, usage)
	}

	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer utils.CloseLogger(logger)

	switch name {
	case "ports":
		for _, port := range serialkit.ListPorts() {
			fmt.Fprintln(stdout, port)
		}
		return nil
	case "send":
		if flags.NArg() != 1 {
			return errors.New("send needs exactly one command argument")
		}
		return sendCommand(cfg, logger, flags.Arg(0), parseName, stdout)
	case "read":
		return readOnce(cfg, logger, readSize, stdout)
	default:
		app, err := NewApplication(cfg, logger)
		if err != nil {
			return err
		}
		return app.Start()
	}
}

func connect(cfg *config.Config, logger *zap.Logger) (*serialkit.Connection, error) {
	connCfg, err := connectionConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return serialkit.Connect(connCfg)
}

func sendCommand(cfg *config.Config, logger *zap.Logger, command, parseName string, stdout io.Writer) error {
	parse, ok := serialkit.NamedParser(parseName)
	if !ok {
		return fmt.Errorf("unknown parser %q", parseName)
	}

	payload, err := config.Unescape(command)
	if err != nil {
		return fmt.Errorf("invalid command %q: %w", command, err)
	}

	conn, err := connect(cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	result, err := serialkit.SendString(conn, payload, parse, 0)
	if err != nil {
		return err
	}
	return printResult(stdout, result)
}

func readOnce(cfg *config.Config, logger *zap.Logger, size int, stdout io.Writer) error {
	conn, err := connect(cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	data, err := conn.ReadData(size)
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}

// printResult writes a parsed response in a shell-friendly form
func printResult(w io.Writer, result any) error {
	var err error
	switch v := result.(type) {
	case nil:
	case []byte:
		_, err = w.Write(v)
	case string:
		_, err = fmt.Fprintln(w, v)
	case []string:
		_, err = fmt.Fprintln(w, strings.Join(v, "\n"))
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, err = fmt.Fprintf(w, "%s=%s\n", k, v[k]); err != nil {
				break
			}
		}
	default:
		_, err = fmt.Fprintf(w, "%v\n", v)
	}
	return err
}
