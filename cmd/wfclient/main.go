// Command wfclient joins a wireframe room from the terminal. It prints room activity and sends
// each line typed on stdin as a chat message.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/wirejam/wirejam/internal/client"
	"github.com/wirejam/wirejam/internal/models"
	"github.com/wirejam/wirejam/internal/protocol"
	"github.com/wirejam/wirejam/internal/shape"
)

func main() {
	server := flag.String("server", "ws://localhost:8080", "room server base url")
	roomId := flag.String("room", "", "room id to join")
	export := flag.String("export", "", "write the room snapshot to this file on exit")
	retries := flag.Uint64("retries", 5, "dial retries")
	verbose := flag.Bool("v", false, "log pointer moves")
	listTypes := flag.Bool("types", false, "list the shape types and exit")
	flag.Parse()

	if *listTypes {
		printTypes()
		return
	}

	if *roomId == "" {
		log.Fatal("-room is required")
	}
	wsURL, err := url.JoinPath(*server, "/api/v1/room", *roomId, "ws")
	if err != nil {
		log.Fatalf("invalid server url: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stderr, "wfclient: ", log.LstdFlags)
	tr, err := client.DialWebSocket(ctx, wsURL, client.DialOptions{MaxRetries: *retries, Logger: logger})
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}

	var c *client.Client
	c = client.New(tr, client.Options{
		Logger:  logger,
		OnEvent: func(m protocol.Message) { printEvent(c, m, *verbose) },
	})
	defer c.Close()

	if err := c.Join(*roomId); err != nil {
		log.Fatalf("failed to join: %v", err)
	}

	go readChat(ctx, c)

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("connection ended: %v", err)
	}

	if *export != "" {
		if err := writeExport(c, *export); err != nil {
			log.Fatalf("export failed: %v", err)
		}
		logger.Printf("exported %d shapes to %s", len(c.Shapes()), *export)
	}
}

func readChat(ctx context.Context, c *client.Client) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := c.SendChat(sc.Text()); err != nil && !errors.Is(err, client.ErrChatEmpty) {
			fmt.Fprintf(os.Stderr, "chat not sent: %v\n", err)
		}
	}
}

func printEvent(c *client.Client, m protocol.Message, verbose bool) {
	switch m.Type {
	case protocol.KindUserInfo:
		self := c.Self()
		fmt.Printf("joined as %s (%s)\n", self.UserID, self.SessionID)
	case protocol.KindCurrentUsers:
		fmt.Printf("%d other member(s) present\n", len(c.Cursors()))
	case protocol.KindLoadShapes:
		fmt.Printf("canvas loaded: %d shape(s)\n", len(c.Shapes()))
	case protocol.KindUserJoined:
		var mem models.Member
		if m.Decode(&mem) == nil {
			fmt.Printf("+ %s joined\n", mem.UserID)
		}
	case protocol.KindUserLeft:
		var p protocol.UserLeft
		if m.Decode(&p) == nil {
			fmt.Printf("- %s left\n", p.UserID)
		}
	case protocol.KindShapeCreated, protocol.KindShapeUpdated:
		var s models.Shape
		if m.Decode(&s) == nil {
			fmt.Printf("%s %s %s at (%d,%d) %dx%d\n", m.Type, s.ID, describe(shape.Type(s.Type)), s.X, s.Y, s.Width, s.Height)
		}
	case protocol.KindShapeDeleted:
		var p protocol.ShapeDeleted
		if m.Decode(&p) == nil {
			fmt.Printf("shape_deleted %s\n", p.ID)
		}
	case protocol.KindCanvasCleared:
		fmt.Println("canvas cleared")
	case protocol.KindChatMessage:
		var chat models.ChatMessage
		if m.Decode(&chat) == nil {
			fmt.Printf("<%s> %s\n", chat.UserID, chat.Message)
		}
	case protocol.KindUserMouseMove:
		if verbose {
			var p protocol.UserMouseMove
			if m.Decode(&p) == nil {
				fmt.Printf("pointer %s (%.0f,%.0f)\n", p.SessionID, p.X, p.Y)
			}
		}
	}
}

func describe(t shape.Type) string {
	if !shape.Known(t) {
		return fmt.Sprintf("%q (unknown type)", t)
	}
	return shape.Resolve(t).Name
}

func printTypes() {
	for _, group := range []struct {
		title    string
		category shape.Category
	}{{"Elements", shape.CategoryElement}, {"Sections", shape.CategorySection}} {
		fmt.Println(group.title + ":")
		for _, k := range shape.All(group.category) {
			mark := ""
			if k.Editable() {
				mark = " (text)"
			}
			fmt.Printf("  %-22s %s%s\n", k.Type, k.Name, mark)
		}
	}
}

func writeExport(c *client.Client, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
