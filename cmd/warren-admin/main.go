// ABOUTME: Operator CLI for the warren gateway HTTP API
// ABOUTME: Lists agents, dumps history, sends commands, patches and deletes agents

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/warren/internal/api"
	"github.com/2389/warren/internal/config"
	"github.com/2389/warren/internal/models"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	serverURL := os.Getenv("WARREN_GATEWAY")
	token := os.Getenv("WARREN_TOKEN")
	if serverURL == "" {
		settings := config.NewStore(config.NewFileKV(config.DefaultKVPath()), nil).Load()
		serverURL = settings.ServerURL
		if token == "" {
			token = settings.AuthToken
		}
	}

	client := api.New(serverURL, token, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "health":
		err = cmdHealth(ctx, client, serverURL)
	case "agents":
		err = cmdAgents(ctx, client)
	case "history":
		err = cmdHistory(ctx, client, args)
	case "send":
		err = cmdSend(ctx, client, args)
	case "rename":
		err = cmdRename(ctx, client, args)
	case "delete":
		err = cmdDelete(ctx, client, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: warren-admin <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  health                 Check gateway connectivity")
	fmt.Println("  agents                 List agents")
	fmt.Println("  history <id>           Dump an agent's session history")
	fmt.Println("  send <id> <message>    Send a command to an agent")
	fmt.Println("  rename <id> <name>     Rename an agent")
	fmt.Println("  delete <id>            Delete an agent")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  WARREN_GATEWAY   Gateway base URL (falls back to saved settings)")
	fmt.Println("  WARREN_TOKEN     Bearer token")
}

func cmdHealth(ctx context.Context, client *api.Client, serverURL string) error {
	if client.Health(ctx) {
		color.Green("✓ %s is reachable", serverURL)
		return nil
	}
	return fmt.Errorf("%s is not reachable", serverURL)
}

func statusColor(status models.AgentStatus) *color.Color {
	switch status {
	case models.StatusWorking:
		return color.New(color.FgGreen)
	case models.StatusError, models.StatusOrphaned:
		return color.New(color.FgRed)
	case models.StatusWaiting, models.StatusWaitingPermission:
		return color.New(color.FgYellow)
	case models.StatusOffline:
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgWhite)
	}
}

func cmdAgents(ctx context.Context, client *api.Client) error {
	agents := client.ListAgents(ctx)
	if len(agents) == 0 {
		fmt.Println("No agents.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCLASS\tSTATUS\tCWD\tTASK")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Name, a.Class,
			statusColor(a.Status).Sprint(string(a.Status)),
			a.Cwd, a.CurrentTask)
	}
	return w.Flush()
}

func cmdHistory(ctx context.Context, client *api.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: warren-admin history <id>")
	}

	page, err := client.History(ctx, args[0], 50, 0)
	if err != nil {
		return err
	}

	user := color.New(color.FgCyan, color.Bold)
	agent := color.New(color.FgWhite)
	for _, rec := range page.Messages {
		text := rec.Text
		if text == "" && len(rec.Content) > 0 {
			text = string(rec.Content)
		}
		switch rec.Type {
		case "user":
			user.Printf("you> ")
		default:
			agent.Printf("%s> ", rec.Type)
		}
		fmt.Println(strings.TrimSpace(text))
	}
	if page.HasMore {
		color.HiBlack("(%d total, showing latest page)", page.TotalCount)
	}
	return nil
}

func cmdSend(ctx context.Context, client *api.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: warren-admin send <id> <message>")
	}
	if err := client.SendMessage(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
		return err
	}
	color.Green("✓ sent")
	return nil
}

func cmdRename(ctx context.Context, client *api.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: warren-admin rename <id> <name>")
	}
	name := strings.Join(args[1:], " ")
	agent, err := client.UpdateAgent(ctx, args[0], models.AgentPatch{Name: &name})
	if err != nil {
		return err
	}
	color.Green("✓ renamed to %s", agent.Name)
	return nil
}

func cmdDelete(ctx context.Context, client *api.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: warren-admin delete <id>")
	}
	if err := client.DeleteAgent(ctx, args[0]); err != nil {
		return err
	}
	color.Green("✓ deleted %s", args[0])
	return nil
}
