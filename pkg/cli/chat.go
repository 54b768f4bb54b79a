package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/recall/pkg/cli/config"
	"github.com/secmon-lab/recall/pkg/domain/types"
	"github.com/secmon-lab/recall/pkg/service/embedding"
	"github.com/secmon-lab/recall/pkg/service/reply"
	"github.com/secmon-lab/recall/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// localAccountID identifies the single account used by the interactive
// chat command. Memories accumulate under it across turns.
const localAccountID = types.AccountID("local")

func cmdChat() *cli.Command {
	var (
		repoCfg   config.Repository
		geminiCfg config.Gemini
		chatCfg   config.Chat
	)

	flags := repoCfg.Flags()
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, chatCfg.Flags()...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat session on the terminal",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = repo.Close()
			}()

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return err
			}
			if llmClient == nil {
				return goerr.New("gemini-project is required to chat")
			}

			chatConfig, err := chatCfg.Configure()
			if err != nil {
				return err
			}

			embedSvc, err := embedding.New(llmClient, chatConfig.EmbeddingOptions()...)
			if err != nil {
				return goerr.Wrap(err, "failed to create embedding service")
			}

			replySvc, err := reply.New(llmClient, chatConfig.ReplyOptions()...)
			if err != nil {
				return goerr.Wrap(err, "failed to create reply service")
			}

			chatUC, err := usecase.NewChatUseCase(repo, embedSvc, replySvc, chatConfig.ChatOptions()...)
			if err != nil {
				return goerr.Wrap(err, "failed to create chat use case")
			}

			prompt := color.New(color.FgCyan, color.Bold)
			answer := color.New(color.FgGreen)

			w := c.Root().Writer
			fmt.Fprintf(w, "Chat session started. Type 'exit' to quit.\n")

			var conversationID types.ConversationID
			scanner := bufio.NewScanner(os.Stdin)

			for {
				prompt.Fprint(w, "> ")
				if !scanner.Scan() {
					break
				}

				message := scanner.Text()
				if message == "exit" {
					break
				}
				if message == "" {
					continue
				}

				resp, err := chatUC.SendMessage(ctx, localAccountID, conversationID, message)
				if err != nil {
					return goerr.Wrap(err, "failed to send message")
				}

				conversationID = resp.ConversationID
				answer.Fprintf(w, "%s\n", resp.Reply)
			}

			fmt.Fprintf(w, "\nChat session completed\n")
			return nil
		},
	}
}
