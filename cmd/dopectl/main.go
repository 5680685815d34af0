// dopectl — thin CLI over the dope HTTP command surface. Every command is
// one POST; the server decides everything, including the exit code.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dope-context/dope/pkg/commands"
)

const usage = `usage: dopectl [flags] <command> [params-json]

commands:
  session.start | session.save | session.load | session.break
  session.resume | session.end | task.assess | task.implement | stats

flags:
  -server     dope server base URL (default http://localhost:8080, env DOPE_SERVER)
  -workspace  workspace id (default current directory, env DOPE_WORKSPACE)
  -user       user id (default $USER, env DOPE_USER)

exit codes: 0 ok, 1 validation, 2 backend unavailable, 3 budget exceeded,
4 illegal transition, 5 break required
`

type commandResponse struct {
	OK       bool            `json:"ok"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	ExitCode int             `json:"exit_code"`
}

func main() {
	server := flag.String("server", envOr("DOPE_SERVER", "http://localhost:8080"), "dope server base URL")
	workspace := flag.String("workspace", envOr("DOPE_WORKSPACE", defaultWorkspace()), "workspace id")
	user := flag.String("user", envOr("DOPE_USER", os.Getenv("USER")), "user id")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(commands.ExitValidationError)
	}
	name := flag.Arg(0)

	params := map[string]any{}
	if flag.NArg() > 1 {
		if err := json.Unmarshal([]byte(flag.Arg(1)), &params); err != nil {
			fmt.Fprintf(os.Stderr, "dopectl: params must be a JSON object: %v\n", err)
			os.Exit(commands.ExitValidationError)
		}
	}

	req := commands.Request{
		WorkspaceID: *workspace,
		UserID:      *user,
		Params:      params,
	}
	body, err := json.Marshal(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dopectl: %v\n", err)
		os.Exit(commands.ExitValidationError)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Post(*server+"/api/v1/commands/"+name, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "dopectl: server unreachable: %v\n", err)
		os.Exit(commands.ExitBackendUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dopectl: read response: %v\n", err)
		os.Exit(commands.ExitBackendUnavailable)
	}

	var parsed commandResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		fmt.Fprintf(os.Stderr, "dopectl: unexpected response: %s\n", raw)
		os.Exit(commands.ExitBackendUnavailable)
	}

	if !parsed.OK {
		fmt.Fprintf(os.Stderr, "dopectl: %s\n", parsed.Error)
		os.Exit(parsed.ExitCode)
	}

	out, err := json.MarshalIndent(parsed.Result, "", "  ")
	if err != nil {
		out = parsed.Result
	}
	fmt.Println(string(out))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultWorkspace() string {
	wd, err := os.Getwd()
	if err != nil {
		return "default"
	}
	return wd
}
