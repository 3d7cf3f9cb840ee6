// Command hashgen prints the argon2id hash of a password, suitable for
// ADMIN_PASSWORD_HASH.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/praxos/assistant-core/internal/adapter/httpserver"
)

func main() {
	var password string
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			log.Fatal(err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		log.Fatal("empty password")
	}

	hash, err := httpserver.HashPassword(password, httpserver.DefaultArgon2Params())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(hash)
}
