package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chattie/chattie/internal/auth"
	"github.com/chattie/chattie/internal/backend"
	"github.com/chattie/chattie/internal/common/config"
	"github.com/chattie/chattie/internal/infra/cache"
	"github.com/chattie/chattie/internal/models"
	"github.com/chattie/chattie/internal/prefs"
	"github.com/chattie/chattie/internal/ratelimit"
	"github.com/chattie/chattie/internal/version"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)
	historyChannel := historyCmd.String("channel", "", "channel id")
	historyOffset := historyCmd.Int("offset", 0, "number of newer messages to skip")

	sendCmd := flag.NewFlagSet("send", flag.ExitOnError)
	sendChannel := sendCmd.String("channel", "", "channel id")
	sendWorkspace := sendCmd.String("workspace", "", "workspace id")
	sendText := sendCmd.String("text", "", "message content")

	channelsCmd := flag.NewFlagSet("channels", flag.ExitOnError)
	channelsWorkspace := channelsCmd.String("workspace", "", "workspace id")

	renameCmd := flag.NewFlagSet("rename-channel", flag.ExitOnError)
	renameChannel := renameCmd.String("channel", "", "channel id")
	renameName := renameCmd.String("name", "", "new channel name")
	renameType := renameCmd.String("type", string(models.ChannelPublic), "public or private")

	deleteCmd := flag.NewFlagSet("delete-channel", flag.ExitOnError)
	deleteChannel := deleteCmd.String("channel", "", "channel id")

	membersCmd := flag.NewFlagSet("members", flag.ExitOnError)
	membersIDs := membersCmd.String("ids", "", "comma separated user ids")

	prefsCmd := flag.NewFlagSet("prefs", flag.ExitOnError)
	prefsTheme := prefsCmd.String("theme", "", "switch to light or dark")

	clearCmd := flag.NewFlagSet("clear-cache", flag.ExitOnError)
	clearAll := clearCmd.Bool("all", false, "clear every cached profile")
	clearUser := clearCmd.String("user", "", "clear one cached profile")

	if len(os.Args) < 2 {
		printUsage()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "history":
		if err := historyCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
		return withClient(func(c *backend.Client) error {
			page, err := c.LoadMessages(ctx, *historyChannel, *historyOffset)
			if err != nil {
				return err
			}
			for _, m := range page.Messages {
				fmt.Printf("%s  %-16s %s\n", m.CreatedAt.Format(time.DateTime), m.SenderName, m.Content)
			}
			fmt.Printf("%d of %d messages\n", len(page.Messages), page.Total)
			return nil
		})
	case "send":
		if err := sendCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
		return withClient(func(c *backend.Client) error {
			msg, err := c.CreateMessage(ctx, *sendText, *sendChannel, *sendWorkspace)
			if err != nil {
				return err
			}
			fmt.Printf("Message sent: %s\n", msg.ID)
			return nil
		})
	case "channels":
		if err := channelsCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
		return withClient(func(c *backend.Client) error {
			list, err := c.ListChannels(ctx, *channelsWorkspace)
			if err != nil {
				return err
			}
			for _, ch := range list {
				fmt.Printf("%s  %-8s %s\n", ch.ID, ch.Type, ch.Name)
			}
			return nil
		})
	case "rename-channel":
		if err := renameCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
		return withClient(func(c *backend.Client) error {
			ch, err := c.UpdateChannel(ctx, *renameChannel, *renameName, models.ChannelType(*renameType))
			if err != nil {
				return err
			}
			fmt.Printf("Channel %s is now %q (%s)\n", ch.ID, ch.Name, ch.Type)
			return nil
		})
	case "delete-channel":
		if err := deleteCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
		return withClient(func(c *backend.Client) error {
			if err := c.DeleteChannel(ctx, *deleteChannel); err != nil {
				return err
			}
			fmt.Printf("Channel deleted: %s\n", *deleteChannel)
			return nil
		})
	case "members":
		if err := membersCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
		return withClient(func(c *backend.Client) error {
			list, err := c.GetMembers(ctx, splitIDs(*membersIDs))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		})
	case "prefs":
		if err := prefsCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
		return handlePrefs(*prefsTheme)
	case "version":
		fmt.Println(version.String())
		return nil
	case "clear-cache":
		if err := clearCmd.Parse(os.Args[2:]); err != nil {
			return err
		}
		return handleClearCache(ctx, *clearAll, *clearUser)
	default:
		printUsage()
		return nil
	}
}

func withClient(fn func(c *backend.Client) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	creds, err := auth.NewCredentials(cfg.Backend.Project, cfg.Session.Cookie, cfg.Session.JWT, cfg.Session.UserID)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	client := backend.New(backend.Options{
		Endpoint:     cfg.Backend.Endpoint,
		Project:      cfg.Backend.Project,
		Database:     cfg.Backend.Database,
		AvatarBucket: cfg.Backend.AvatarBucket,
		AppBaseURL:   cfg.App.BaseURL,
		Timeout:      cfg.Backend.Timeout,
		UserAgent:    version.UserAgent("chattie-cli"),
		Limiter:      ratelimit.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.Enabled),
	}, creds, zap.NewNop())
	return fn(client)
}

func handlePrefs(theme string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := prefs.Open(cfg.Prefs.Path, nil, zap.NewNop())
	if err != nil {
		return fmt.Errorf("open preferences: %w", err)
	}

	if theme != "" {
		if err := store.SetTheme(prefs.Theme(theme)); err != nil {
			return err
		}
	}
	fmt.Printf("Theme: %s\n", store.Theme())
	fmt.Printf("File:  %s\n", cfg.Prefs.Path)
	return nil
}

func handleClearCache(ctx context.Context, all bool, user string) error {
	if !all && user == "" {
		return fmt.Errorf("must specify either --all or --user")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !cfg.Redis.Enabled {
		return fmt.Errorf("redis is not enabled in config")
	}

	cacheClient, err := cache.New(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		"chattie:",
	)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer func(cacheClient *cache.Cache) {
		err := cacheClient.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error closing cache client: %v\n", err)
		}
	}(cacheClient)

	if all {
		count, err := cacheClient.Purge(ctx, "user:*")
		if err != nil {
			return fmt.Errorf("clear profile cache: %w", err)
		}
		if count == 0 {
			fmt.Println("No cached profiles found")
			return nil
		}
		fmt.Printf("Cleared %d cached profiles\n", count)
		return nil
	}

	if err := cacheClient.Delete(ctx, "user:"+user); err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	fmt.Printf("Cached profile cleared for user: %s\n", user)
	return nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

func printUsage() {
	fmt.Println("Usage: chattie-cli <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  history          Print a page of channel history")
	fmt.Println("    --channel      Channel id")
	fmt.Println("    --offset       Number of newer messages to skip")
	fmt.Println()
	fmt.Println("  send             Post a message")
	fmt.Println("    --channel      Channel id")
	fmt.Println("    --workspace    Workspace id")
	fmt.Println("    --text         Message content")
	fmt.Println()
	fmt.Println("  channels         List the channels of a workspace")
	fmt.Println("    --workspace    Workspace id")
	fmt.Println()
	fmt.Println("  rename-channel   Rename a channel or change its type")
	fmt.Println("    --channel      Channel id")
	fmt.Println("    --name         New name")
	fmt.Println("    --type         public or private")
	fmt.Println()
	fmt.Println("  delete-channel   Delete a channel")
	fmt.Println("    --channel      Channel id")
	fmt.Println()
	fmt.Println("  members          Print member profiles as JSON")
	fmt.Println("    --ids          Comma separated user ids")
	fmt.Println()
	fmt.Println("  prefs            Show or change saved preferences")
	fmt.Println("    --theme        light or dark")
	fmt.Println()
	fmt.Println("  clear-cache      Clear cached member profiles")
	fmt.Println("    --all          Clear every profile")
	fmt.Println("    --user         Clear one user's profile")
	fmt.Println()
	fmt.Println("  version          Print the release name")
}
