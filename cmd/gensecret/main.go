package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

const defaultSecretKeyBytesLen = 32

// Print random hex secret suitable for SECRET_KEY
func main() {
	var (
		length int
		asEnv  bool
	)

	fs := pflag.NewFlagSet("gensecret", pflag.ExitOnError)
	fs.IntVarP(&length, "bytes", "n", defaultSecretKeyBytesLen, "Number of random bytes")
	fs.BoolVar(&asEnv, "env", false, "Print as SECRET_KEY=... line for .env file")
	_ = fs.Parse(os.Args[1:])

	secret, err := generate(length)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}

	if asEnv {
		fmt.Printf("SECRET_KEY=%s\n", secret)
		return
	}
	fmt.Println(secret)
}

func generate(length int) (string, error) {
	if length < 16 {
		return "", fmt.Errorf("secret is too short: %d bytes, use at least 16", length)
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
