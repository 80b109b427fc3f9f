package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"chatsync/internal/config"
	"chatsync/internal/protocol"
	"chatsync/internal/restapi"
	"chatsync/internal/session"
)

func main() {
	peerFlag := flag.Int64("peer", 0, "peer user id to open on start")
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	login, err := restapi.Login(ctx, cfg.ServerURL, cfg.Username, cfg.Password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}
	fmt.Printf("signed in as %s (#%d)\n", login.User.Username, login.User.ID)

	sess := session.New(cfg.ServerURL, login.User.ID, login.AccessToken)
	sess.OnTyping(func(peerID int64, isTyping bool) {
		if isTyping {
			fmt.Printf("-- peer %d is typing...\n", peerID)
		}
	})
	sess.AddListener(func(ev protocol.Event) {
		switch ev := ev.(type) {
		case protocol.MessageEvent:
			fmt.Printf("[%d -> %d] %s\n", ev.SenderID, ev.ReceiverID, ev.Content)
		case protocol.EditEvent:
			fmt.Printf("-- message %d edited: %s\n", ev.MessageID, ev.NewContent)
		case protocol.DeleteEvent:
			fmt.Printf("-- message %d deleted\n", ev.MessageID)
		case protocol.ReactionEvent:
			fmt.Printf("-- %s on message %d by %d\n", ev.Reaction, ev.MessageID, ev.ReactedBy)
		case protocol.ReadReceiptEvent:
			fmt.Printf("-- peer %d read your messages\n", ev.ReaderID)
		}
	})

	if err := sess.Connect(ctx); err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer sess.Disconnect()

	sess.EnterMessagesView(ctx)
	if *peerFlag > 0 {
		sess.OpenConversation(ctx, *peerFlag)
		fmt.Printf("opened conversation with %d\n", *peerFlag)
	}

	go repl(ctx, sess)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	fmt.Println("\nbye")
}

// repl reads stdin: /commands control the session, anything else is sent
// to the open conversation.
func repl(ctx context.Context, sess *session.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "/quit":
			_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
			return
		case line == "/chats":
			for _, c := range sess.RecentChats() {
				fmt.Printf("  #%d %s: %s\n", c.PeerID, c.Username, c.LastMessage.PreviewText())
			}
		case line == "/unread":
			fmt.Printf("  unread: %d\n", sess.UnreadCount())
		case line == "/messages":
			for _, m := range sess.Messages() {
				fmt.Printf("  [%d] %d: %s\n", m.ID, m.SenderID, m.Content)
			}
		case strings.HasPrefix(line, "/open "):
			id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "/open ")), 10, 64)
			if err != nil || id <= 0 {
				fmt.Println("  usage: /open <peer-id>")
				continue
			}
			sess.OpenConversation(ctx, id)
			fmt.Printf("  opened conversation with %d\n", id)
		default:
			peer := sess.ActivePeer()
			if peer == 0 {
				fmt.Println("  no open conversation; /open <peer-id> first")
				continue
			}
			sess.SendMessage(peer, line)
		}
	}
}
