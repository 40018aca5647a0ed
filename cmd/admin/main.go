package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"carelink/backend/internal/config"
	"carelink/backend/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = `Usage: admin <command> [args]

Commands:
  set-role <email> <role>     change a user's role (patient, doctor, admin)
  clear-otp <email>           drop a pending password reset code
  conversations <user_id>     list a user's conversations, newest first`

func main() {
	_ = godotenv.Load()
	log := zap.NewExample()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}
	defer func() { _ = store.Close(context.Background()) }()

	args := os.Args[2:]
	switch os.Args[1] {
	case "set-role":
		if len(args) != 2 {
			fmt.Println("Usage: admin set-role <email> <role>")
			os.Exit(1)
		}
		if err := setRole(ctx, store, args[0], args[1]); err != nil {
			log.Fatal("set-role failed", zap.Error(err))
		}
		fmt.Printf("User %s is now %s.\n", args[0], args[1])
	case "clear-otp":
		if len(args) != 1 {
			fmt.Println("Usage: admin clear-otp <email>")
			os.Exit(1)
		}
		if err := clearOTP(ctx, store, args[0]); err != nil {
			log.Fatal("clear-otp failed", zap.Error(err))
		}
		fmt.Printf("OTP cleared for %s.\n", args[0])
	case "conversations":
		if len(args) != 1 {
			fmt.Println("Usage: admin conversations <user_id>")
			os.Exit(1)
		}
		if err := listConversations(ctx, store, args[0]); err != nil {
			log.Fatal("conversations failed", zap.Error(err))
		}
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func setRole(ctx context.Context, s storage.Storage, email, role string) error {
	role = strings.ToLower(role)
	if !config.Roles[role] {
		return fmt.Errorf("unknown role %q", role)
	}
	user, err := s.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	user.Role = role
	if role != config.RoleDoctor {
		user.DoctorID = ""
	}
	user.UpdatedAt = time.Now()
	return s.UpdateUser(ctx, user)
}

func clearOTP(ctx context.Context, s storage.Storage, email string) error {
	user, err := s.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	user.ClearOTP()
	user.UpdatedAt = time.Now()
	return s.UpdateUser(ctx, user)
}

func listConversations(ctx context.Context, s storage.Storage, userID string) error {
	summaries, err := s.RecentConversations(ctx, userID)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No conversations.")
		return nil
	}
	for _, cs := range summaries {
		last := "-"
		if cs.LastMessage != nil {
			last = truncate(cs.LastMessage.Content, 40)
		}
		fmt.Printf("%s  %-24s  %s  %s\n", cs.ID, cs.User.Name, cs.LastMessageAt.Format(time.RFC3339), last)
	}
	return nil
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
