// Package legendarytest provides a fake legendary CLI for tests. Packages
// re-execute their own test binary as the CLI:
//
//	func TestMain(m *testing.M) {
//		legendarytest.Main()
//		os.Exit(m.Run())
//	}
//
// and install legendarytest.Command on a legendary.Client.
//
// Behaviour is driven by the app name passed to the CLI: names containing
// "fail" end with "ERROR: disk full" and exit 1, "nomarker" exits 0 without a
// completion line, "hang" blocks until signalled, "outdated" refuses to launch
// without --skip-version-check and "broken" cannot be launched at all. Titles
// listed in Games but not in Installed only launch with --origin, which prints
// a hand-off URI.
package legendarytest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	envWant    = "GAMEDOCK_WANT_FAKE_LEGENDARY"
	envLog     = "GAMEDOCK_FAKE_LEGENDARY_LOG"
	envAccount = "GAMEDOCK_FAKE_LEGENDARY_ACCOUNT"
	envOffline = "GAMEDOCK_FAKE_LEGENDARY_NO_NETWORK"
)

// Games is the fixture printed by "list --json".
const Games = `[
 {"app_name": "Fortnite", "app_title": "Fortnite", "metadata": {"customAttributes": {}}, "asset_infos": {"Windows": {"build_version": "5.0"}}},
 {"app_name": "Sugar", "app_title": "Sugar Rush", "metadata": {"customAttributes": {}}, "asset_infos": {"Windows": {"build_version": "2.0"}}},
 {"app_name": "Cobalt", "app_title": "Cobalt", "metadata": {"customAttributes": {"com.epicgames.app.productSlug": {"value": "cobalt"}}}, "asset_infos": {"Windows": {"build_version": "1.5"}}},
 {"app_name": "Origin1", "app_title": "Origin Game", "metadata": {"customAttributes": {"ThirdPartyManagedApp": {"value": "Origin"}}}, "asset_infos": {"Windows": {"build_version": "1.0"}}}
]`

// Installed is the fixture printed by "list-installed --json".
const Installed = `[
 {"app_name": "Sugar", "title": "Sugar Rush", "version": "1.0", "install_size": 2048, "install_path": "/games/Sugar"}
]`

// Command returns a CommandFunc running the fake CLI and the path of the
// file each invocation's arguments are appended to.
func Command(t testing.TB) (func(ctx context.Context, name string, args ...string) *exec.Cmd, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "calls.log")
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], args...)
		cmd.Env = append(os.Environ(), envWant+"=1", envLog+"="+logPath)
		return cmd
	}, logPath
}

// SetAccount makes "status --json" report the given account for the test.
func SetAccount(t testing.TB, account string) {
	t.Helper()
	t.Setenv(envAccount, account)
}

// SetNoNetwork makes every online "status" call fail for the test.
func SetNoNetwork(t testing.TB) {
	t.Helper()
	t.Setenv(envOffline, "1")
}

// Calls returns the recorded invocations, one argument list per call.
func Calls(t testing.TB, logPath string) [][]string {
	t.Helper()
	b, err := os.ReadFile(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read calls: %v", err)
	}
	var out [][]string
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if line == "" {
			continue
		}
		out = append(out, strings.Split(line, "\x1f"))
	}
	return out
}

// Main runs the fake CLI and exits when the process was started through
// Command. Otherwise it returns immediately.
func Main() {
	if os.Getenv(envWant) != "1" {
		return
	}
	args := os.Args[1:]
	record(args)
	os.Exit(run(args))
}

func record(args []string) {
	path := os.Getenv(envLog)
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintln(f, strings.Join(args, "\x1f"))
}

func run(args []string) int {
	if len(args) == 0 {
		return 2
	}
	app := ""
	if len(args) > 1 {
		app = args[1]
	}
	switch args[0] {
	case "install", "update", "repair":
		return transfer(app, "[cli] INFO: Finished installation process in 1.00 seconds.")
	case "move":
		return transfer(app, "[cli] INFO: Finished! Game has been moved.")
	case "launch":
		return launchGame(app, has(args, "--skip-version-check"), has(args, "--origin"))
	case "status":
		if os.Getenv(envOffline) == "1" && !has(args, "--offline") {
			fmt.Fprintln(os.Stderr, "[cli] ERROR: Failed to connect to the Epic Games Store")
			return 1
		}
		account := os.Getenv(envAccount)
		if account == "" {
			account = "<not logged in>"
		}
		fmt.Printf(`{"account": %q, "games_available": 3, "games_installed": 1, "egl_sync_enabled": false, "config_directory": "/tmp/legendary"}`+"\n", account)
		return 0
	case "list":
		fmt.Println(Games)
		return 0
	case "list-installed":
		fmt.Println(Installed)
		return 0
	case "info":
		if strings.Contains(app, "fail") {
			fmt.Fprintln(os.Stderr, "[cli] ERROR: Game not found")
			return 1
		}
		fmt.Println(`{"game": {"app_name": "` + app + `"}, "install": {"disk_size": 123456789, "download_size": 100}}`)
		return 0
	case "auth":
		if has(args, "--code") && argAfter(args, "--code") == "bad" {
			fmt.Fprintln(os.Stderr, "[cli] ERROR: Login attempt failed, please see log for details.")
			return 1
		}
		return 0
	case "uninstall", "import", "list-games", "eos-overlay":
		if strings.Contains(app, "fail") {
			fmt.Fprintln(os.Stderr, "[cli] ERROR: operation failed")
			return 1
		}
		return 0
	}
	fmt.Fprintln(os.Stderr, "[cli] ERROR: unknown command "+args[0])
	return 2
}

func transfer(app, marker string) int {
	fmt.Fprintln(os.Stderr, "[DLManager] INFO: = Progress: 10.00% (10/100), Running for 00:00:01, ETA: 00:00:09")
	fmt.Fprintln(os.Stderr, "[DLManager] INFO:  - Downloaded: 12.50 MiB, Written: 12.50 MiB")
	switch {
	case strings.Contains(app, "fail"):
		fmt.Fprintln(os.Stderr, "[cli] ERROR: disk full")
		return 1
	case strings.Contains(app, "nomarker"):
		return 0
	case strings.Contains(app, "hang"):
		time.Sleep(time.Minute)
		return 0
	}
	fmt.Fprintln(os.Stderr, marker)
	return 0
}

func launchGame(app string, skipCheck, origin bool) int {
	switch {
	case origin:
		fmt.Printf(`{"uri": "link2ea://launchgame/%s?platform=ORIGIN&theme=gamedock"}`+"\n", app)
		return 0
	case listed(Games, app) && !listed(Installed, app):
		fmt.Fprintf(os.Stderr, "[cli] ERROR: Game %q is not currently installed!\n", app)
		return 1
	case strings.Contains(app, "outdated") && !skipCheck:
		fmt.Fprintln(os.Stderr, "[cli] ERROR: Game is out of date, please update or launch with update check skipping!")
		return 1
	case strings.Contains(app, "broken"):
		fmt.Fprintln(os.Stderr, "[cli] ERROR: Game is not installed")
		return 1
	}
	fmt.Printf(`{"game_parameters": ["-epicapp=%s"], "game_executable": "game.exe", "game_directory": "/games/%s", "working_directory": "/games/%s", "launch_command": [], "egl_parameters": [], "environment": {}}`+"\n", app, app, app)
	return 0
}

// listed reports whether fixture contains an entry for app.
func listed(fixture, app string) bool {
	return strings.Contains(fixture, `"app_name": "`+app+`"`)
}

func has(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
