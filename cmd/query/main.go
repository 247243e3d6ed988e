package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kirillkom/personal-ai-assistant/internal/bootstrap"
	"github.com/kirillkom/personal-ai-assistant/internal/config"
)

const usageBanner = "세무조사 사례 질의 응답 (Ollama + Qdrant)\n종료하려면 'exit' 또는 'quit'을 입력하세요.\n"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	app, err := bootstrap.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx := context.Background()

	if len(os.Args) > 1 {
		query := strings.Join(os.Args[1:], " ")
		if strings.TrimSpace(query) == "" {
			fmt.Fprintln(os.Stderr, "usage: query \"<question>\"")
			os.Exit(2)
		}
		if err := runOnce(ctx, app, query); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	interactive(ctx, app)
}

func runOnce(ctx context.Context, app *bootstrap.App, query string) error {
	answer, err := app.Pipeline.RunQuery(ctx, query)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

func interactive(ctx context.Context, app *bootstrap.App) {
	fmt.Print(usageBanner)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("질문> ")
		if !scanner.Scan() {
			fmt.Println("\n종료합니다.")
			return
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if isExitCommand(query) {
			fmt.Println("종료합니다.")
			return
		}

		answer, err := app.Pipeline.RunQuery(ctx, query)
		if err != nil {
			fmt.Printf("오류 발생: %v\n\n", err)
			continue
		}
		fmt.Println(answer)
		fmt.Println()
	}
}

func isExitCommand(query string) bool {
	switch strings.ToLower(query) {
	case "exit", "quit", "종료":
		return true
	default:
		return false
	}
}
