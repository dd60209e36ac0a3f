package main

import (
	"fmt"
	"strconv"

	"file-share-bot/internal/config"
	"file-share-bot/pkg/linkcodec"
	"file-share-bot/pkg/token"

	"github.com/spf13/cobra"
)

// link command
var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Encode or decode share link tokens",
}

var linkEncodeCmd = &cobra.Command{
	Use:   "encode <first> [last]",
	Short: "Print the token and deep link for a message ID or range",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		first, err := strconv.Atoi(args[0])
		if err != nil || first <= 0 {
			return fmt.Errorf("invalid message id %q", args[0])
		}
		req := linkcodec.Single(first)
		if len(args) == 2 {
			last, err := strconv.Atoi(args[1])
			if err != nil || last < first {
				return fmt.Errorf("invalid last id %q", args[1])
			}
			req = linkcodec.Range(first, last)
		}
		fmt.Printf("Token: %s\n", req.Token())
		if username, _ := cmd.Flags().GetString("bot"); username != "" {
			fmt.Printf("Link:  %s\n", linkcodec.DeepLink(username, req))
		}
		return nil
	},
}

var linkDecodeCmd = &cobra.Command{
	Use:   "decode <token>",
	Short: "Print the message IDs a token refers to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := linkcodec.Parse(args[0])
		if err != nil {
			return fmt.Errorf("failed to decode token: %w", err)
		}
		if req.Batch {
			fmt.Printf("Batch: %d-%d (%d files)\n", req.First, req.Last, req.Size())
			return nil
		}
		fmt.Printf("File: %d\n", req.First)
		return nil
	},
}

// token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage admin API tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue an admin API token for a configured admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if !cfg.Telegram.IsAdmin(userID) {
			return fmt.Errorf("user %d is not a configured admin", userID)
		}
		tok, err := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenHours).GenerateToken(userID, token.RoleAdmin)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	linkEncodeCmd.Flags().String("bot", "", "bot username used to build the deep link")
	linkCmd.AddCommand(linkEncodeCmd, linkDecodeCmd)

	tokenIssueCmd.Flags().Int64("user", 0, "Telegram user ID of the admin")
	_ = tokenIssueCmd.MarkFlagRequired("user")
	tokenCmd.AddCommand(tokenIssueCmd)
}
