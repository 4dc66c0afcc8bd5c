package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Share(ctx context.Context) error
	Invite(ctx context.Context, args []string) error
	Requests(ctx context.Context, args []string) error
	Accept(ctx context.Context, args []string) error
	Friends(ctx context.Context) error
	Discover(ctx context.Context) error
	Profile(ctx context.Context) error
	Set(ctx context.Context, args []string) error
	Public(ctx context.Context) error
	Private(ctx context.Context) error
	SetPicture(ctx context.Context, args []string) error
	Reconcile(ctx context.Context) error
}

// runREPL starts a read-eval-print loop for the fitshare CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Commands:
//
//	share              - establish your friend share (first time only)
//	invite U [U...]    - invite users by their record reference
//	requests [sent|received|all]
//	accept ID          - accept a received friend request
//	friends            - list accepted friends
//	discover           - find contacts with a profile
//	profile            - show your profile
//	set FIELD VALUE... - update a profile field (name, username, bio)
//	public | private   - toggle the public projection
//	setpicture PATH    - upload a profile picture
//	reconcile          - fold accepted invitations into your friend list
//	exit | quit        - leave the program
func runREPL(ctx context.Context, a execIface, scanner *bufio.Scanner) {
	for {
		printlnFn("fitshare> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn("Available commands: share, invite, requests, accept, friends, discover, profile, set, public, private, setpicture, reconcile, exit")
		case "share":
			err = a.Share(ctx)
		case "invite":
			err = a.Invite(ctx, args)
		case "requests":
			err = a.Requests(ctx, args)
		case "accept":
			err = a.Accept(ctx, args)
		case "friends":
			err = a.Friends(ctx)
		case "discover":
			err = a.Discover(ctx)
		case "profile":
			err = a.Profile(ctx)
		case "set":
			err = a.Set(ctx, args)
		case "public":
			err = a.Public(ctx)
		case "private":
			err = a.Private(ctx)
		case "setpicture":
			err = a.SetPicture(ctx, args)
		case "reconcile":
			err = a.Reconcile(ctx)
		case "exit", "quit":
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
