package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/HMasataka/statictcp/internal/client"
	"github.com/HMasataka/statictcp/pkg/retry"
	"github.com/jessevdk/go-flags"
	"github.com/samber/lo"
)

type Options struct {
	Concurrency int `long:"concurrency" short:"c" description:"Maximum number of simultaneous connections" default:"4"`
	Retries     int `long:"retries" description:"Extra dial attempts when the connection is refused" default:"0"`

	Args struct {
		Host      string   `positional-arg-name:"host" description:"Server host"`
		Port      int      `positional-arg-name:"port" description:"Server port"`
		Filenames []string `positional-arg-name:"filename" description:"Files to request"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] <host> <port> <filename>..."

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(1)
	}

	os.Exit(run(opts))
}

func run(opts Options) int {
	retryConfig := retry.DefaultConfig()
	retryConfig.Attempts = opts.Retries + 1

	c := client.New(opts.Args.Host, opts.Args.Port, client.Options{
		Retry:       retryConfig,
		Concurrency: opts.Concurrency,
	})

	results := c.FetchAll(context.Background(), opts.Args.Filenames)

	status := 0
	for _, result := range results {
		if len(results) > 1 {
			fmt.Printf("==> %s <==\n", result.Filename)
		}
		if result.Err != nil {
			fmt.Printf("error: %v\n", result.Err)
			status = 1
			continue
		}
		fmt.Println(strings.ToValidUTF8(string(result.Response), "\uFFFD"))
	}

	if status != 0 {
		failed := lo.CountBy(results, func(r client.Result) bool {
			return r.Err != nil
		})
		log.Printf("%d of %d requests failed", failed, len(results))
	}
	return status
}
