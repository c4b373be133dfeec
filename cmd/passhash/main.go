// Command passhash prints a bcrypt hash for a roster password_hash field.
//
//	passhash -cost 12 < password.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/vytor/chessduel/internal/roster"
)

func main() {
	cost := flag.Int("cost", 0, "bcrypt cost (0 for the library default)")
	flag.Parse()

	password := strings.Join(flag.Args(), " ")
	if password == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "usage: passhash [-cost N] [password] (or password on stdin)")
			os.Exit(2)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	hashed, err := roster.HashPassword(password, *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hashed)
}
