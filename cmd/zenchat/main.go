package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/zenchat/zenchat/pkg/client"
)

var (
	addr         = flag.String("addr", "127.0.0.1:1337", "Chat server address")
	transferAddr = flag.String("transfer-addr", "127.0.0.1:1338", "File transfer address")
	downloadDir  = flag.String("downloads", ".", "Directory for received files")
)

func main() {
	flag.Parse()

	c, err := client.Dial(&client.Config{
		Addr:         *addr,
		TransferAddr: *transferAddr,
		DownloadDir:  *downloadDir,
		Output:       os.Stdout,
	})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}

	fmt.Println("Connected. Use 'login <username>' to log in, 'help' for commands.")

	go inputLoop(c)

	<-c.Done()
}

func inputLoop(c *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, rest, _ := strings.Cut(line, " ")
		var err error

		switch cmd {
		case "help":
			printHelp()
		case "login":
			err = c.Login(rest)
		case "logout":
			err = c.Logout()
		case "broadcast":
			err = c.Broadcast(rest)
		case "list_users":
			err = c.ListUsers()
		case "private_message":
			user, msg, ok := splitUserArg(rest)
			if !ok {
				fmt.Println("Usage: private_message <user> <message>")
				continue
			}
			err = c.PrivateMessage(user, msg)
		case "number_setup":
			err = c.NumberSetup()
		case "number_join":
			err = c.NumberJoin()
		case "number_guess":
			err = c.NumberGuess(rest)
		case "file_transfer":
			user, path, ok := splitUserArg(rest)
			if !ok {
				fmt.Println("Usage: file_transfer <user> <filepath>")
				continue
			}
			err = c.OfferFile(user, path)
		case "file_accept":
			err = c.AcceptFile(rest)
		case "file_decline":
			err = c.DeclineFile(rest)
		case "encrypted_private_message":
			user, msg, ok := splitUserArg(rest)
			if !ok {
				fmt.Println("Usage: encrypted_private_message <user> <message>")
				continue
			}
			err = c.SendEncrypted(user, msg)
		default:
			fmt.Println("Unknown command")
		}

		if err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func splitUserArg(rest string) (user, arg string, ok bool) {
	user, arg, found := strings.Cut(rest, " ")
	if !found || user == "" || arg == "" {
		return "", "", false
	}
	return user, arg, true
}

func printHelp() {
	fmt.Println("help: show list of commands")
	fmt.Println("login <username>: log in to the server")
	fmt.Println("logout: log out and exit")
	fmt.Println("broadcast <message>: broadcast message to other users connected to the server")
	fmt.Println("list_users: displays a list of currently connected users")
	fmt.Println("private_message <user> <message>: send a private message to a user")
	fmt.Println("number_setup: set up a number guessing game other users can join")
	fmt.Println("number_join: join a number guessing game set up by another user")
	fmt.Println("number_guess <number>: guess a number for the number guessing game")
	fmt.Println("file_transfer <username> <filepath>: send a request to transfer a file to another user")
	fmt.Println("file_accept <username>: accept a file transfer from a user")
	fmt.Println("file_decline <username>: decline a file transfer from a user")
	fmt.Println("encrypted_private_message <user> <message>: send an encrypted private message to a user")
}
