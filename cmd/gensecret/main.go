package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

const SecretKeyBytesLen = 32

// Print pair of base64 secrets ready to be put into .env
func main() {
	for _, name := range []string{"ACCESS_TOKEN_SECRET", "REFRESH_TOKEN_SECRET"} {
		b := make([]byte, SecretKeyBytesLen)

		_, err := rand.Read(b)
		if err != nil {
			fmt.Printf("error while generating secret key: %v", err)
			os.Exit(1)
		}

		fmt.Printf("%s=%s\n", name, base64.StdEncoding.EncodeToString(b))
	}
}
