package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/alphachat/alphachat-go/internal/api"
	"github.com/alphachat/alphachat-go/internal/config"
	"github.com/alphachat/alphachat-go/internal/domain"
	"github.com/alphachat/alphachat-go/internal/realtime"
	"github.com/alphachat/alphachat-go/internal/session"
	syncrepo "github.com/alphachat/alphachat-go/internal/sync"
)

func main() {
	cfg := config.Load()

	// Session store
	sess, err := session.Open(cfg.SessionDBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Close()

	// A credential can be seeded from the environment after an OAuth login
	// in the browser.
	if cookie := os.Getenv("ALPHACHAT_SESSION_COOKIE"); cookie != "" {
		if err := sess.SaveCredential(cookie); err != nil {
			log.Fatal(err)
		}
	}

	client := api.NewClient(cfg, sess)
	conn := realtime.NewConn(cfg, sess)
	repo := syncrepo.New(client, conn, sess, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go repo.Run(ctx)

	user := repo.CheckAuth(ctx)
	if user == nil {
		log.Fatal("not authenticated: set ALPHACHAT_SESSION_COOKIE and retry")
	}
	log.Printf("logged in as %s (%s)", user.DisplayName, user.Username)

	if err := repo.FetchConversations(ctx); err != nil {
		log.Printf("conversations: %v", err)
	}
	if err := repo.FetchChannels(ctx); err != nil {
		log.Printf("channels: %v", err)
	}

	for _, c := range repo.Conversations().Get() {
		name := "(unknown)"
		if c.OtherUser != nil {
			name = c.OtherUser.DisplayName
		}
		fmt.Printf("dm   %-24s %s\n", name, c.LastMessage)
	}
	for _, ch := range repo.Channels().Get() {
		member := " "
		if ch.IsMember {
			member = "*"
		}
		fmt.Printf("chan %s #%-22s %d members\n", member, ch.Slug, ch.MemberCount)
	}

	// Print pushes for the active channel while reading send commands from
	// stdin: "/open <slug>" then plain lines to send.
	go printEvents(ctx, repo)

	scanner := bufio.NewScanner(os.Stdin)
	activeChannel := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			repo.Logout(ctx)
			return
		case strings.HasPrefix(line, "/open "):
			slug := strings.TrimPrefix(line, "/open ")
			detail, err := repo.LoadChannel(ctx, slug, 1)
			if err != nil {
				log.Printf("open %s: %v", slug, err)
				continue
			}
			activeChannel = detail.Channel.ID
			for _, m := range repo.Messages(activeChannel).Get() {
				printMessage(m)
			}
		default:
			if activeChannel == "" {
				log.Println("open a channel first: /open <slug>")
				continue
			}
			if _, err := repo.SendChannelMessage(ctx, activeChannel, line, domain.KindText, ""); err != nil {
				log.Printf("send: %v", err)
			}
		}
	}
}

func printEvents(ctx context.Context, repo *syncrepo.Repository) {
	states := repo.ConnectionState().Subscribe(ctx)
	for st := range states {
		log.Printf("connection: %s", st)
	}
}

func printMessage(m domain.Message) {
	if m.Deleted() {
		fmt.Printf("%s  [deleted]\n", m.CreatedAt.Format("15:04"))
		return
	}
	pending := ""
	if m.Pending {
		pending = " (sending)"
	}
	fmt.Printf("%s  %s: %s%s\n", m.CreatedAt.Format("15:04"), m.SenderID, m.Content, pending)
}
