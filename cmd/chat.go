package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/emberhome/ember/internal/agent"
	"github.com/emberhome/ember/internal/config"
	"github.com/emberhome/ember/internal/conversation"
	"github.com/emberhome/ember/internal/dependency"
	"github.com/emberhome/ember/internal/schema"
)

var (
	chatMessage string
	chatSession string
	chatStream  bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "cli:direct", "Session ID")
	chatCmd.Flags().BoolVar(&chatStream, "stream", true, "Stream the response as it is generated")
}

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	container, err := dependency.New(cfg)
	if err != nil {
		return err
	}

	processor := container.Processor()
	conv := container.Conversations().GetOrCreate(chatSession)

	if chatMessage != "" {
		return runSingleMessage(processor, conv)
	}
	return runInteractive(processor, conv)
}

// runSingleMessage sends one message to the assistant and prints the response.
func runSingleMessage(processor *agent.Processor, conv *conversation.Conversation) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Fprintf(os.Stderr, "  ↳ thinking...\n")
	reply, err := ask(ctx, processor, conv, chatMessage)
	if err != nil {
		return err
	}
	if !chatStream {
		printResponse(reply)
	}
	return nil
}

// runInteractive starts the REPL loop: reads lines from stdin and sends each
// to the assistant, waiting for each reply before prompting again.
func runInteractive(processor *agent.Processor, conv *conversation.Conversation) error {
	fmt.Printf("%s Interactive mode (type 'exit' or Ctrl+C to quit)\n\n", logo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The REPL goroutine can be blocked on stdin when a signal arrives, so
	// the watcher exits the process directly instead of waiting for it.
	go func() {
		<-ctx.Done()
		fmt.Println("\nGoodbye!")
		os.Exit(0)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("You: ")
			if !scanner.Scan() {
				return scanner.Err()
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if exitCommands[strings.ToLower(line)] {
				return nil
			}

			reply, err := ask(gctx, processor, conv, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			if !chatStream {
				printResponse(reply)
			}
		}
	})

	err := g.Wait()
	fmt.Println("Goodbye!")
	return err
}

// ask runs one query against the processor with the session's history and
// records both turns in the conversation.
func ask(ctx context.Context, processor *agent.Processor, conv *conversation.Conversation, query string) (string, error) {
	opts := agent.ProcessOptions{
		History:   conv.Messages(),
		SessionID: chatSession,
	}

	var reply string
	if chatStream {
		final, err := drainEvents(ctx, processor.ProcessStream(ctx, query, opts))
		if err != nil {
			return "", err
		}
		reply = final
	} else {
		res := processor.Process(ctx, query, opts)
		if !res.Success {
			return "", fmt.Errorf("%s", res.Error)
		}
		reply = res.Response
	}

	conv.AddUser(query)
	conv.AddAssistant(reply)
	return reply, nil
}

// drainEvents prints a query's event stream: text deltas as they arrive,
// tool activity as progress lines. Returns the completion text.
func drainEvents(ctx context.Context, events <-chan schema.Event) (string, error) {
	wroteText := false
	var final string
	for ev := range events {
		switch ev.Type {
		case schema.EventStatus:
			fmt.Fprintf(os.Stderr, "  ↳ %s\n", ev.Content)
		case schema.EventText:
			if !wroteText {
				fmt.Printf("\n%s ember\n", logo)
				wroteText = true
			}
			fmt.Print(ev.Content)
		case schema.EventToolCall:
			fmt.Fprintf(os.Stderr, "  ↳ %s\n", ev.ToolName)
		case schema.EventToolResult:
			// Progress only; results feed back into the loop.
		case schema.EventError:
			return "", fmt.Errorf("%s", ev.Err)
		case schema.EventCompletion:
			final = ev.Content
		}
	}
	if wroteText {
		fmt.Println()
		fmt.Println()
	}
	if err := ctx.Err(); err != nil {
		return final, err
	}
	return final, nil
}

func printResponse(text string) {
	fmt.Printf("\n%s ember\n%s\n\n", logo, text)
}
