// Lấy và in lịch sử sao của một repository duy nhất.
// Dùng để kiểm tra nhanh thuật toán sampling mà không cần chạy cả batch.
//
//	go run ./cmd/history -save facebook/react
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/thep200/star-history-crawler/api"
)

func main() {
	saveFlag := flag.Bool("save", false, "Lưu series vào storage sau khi fetch")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("Usage: history [-save] <owner/name>")
		os.Exit(1)
	}
	fullName := flag.Arg(0)

	ctx := context.Background()
	scraper := api.NewScraperAPI()
	if err := scraper.Initialize(ctx); err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	samples, err := scraper.FetchHistory(fullName)
	if err != nil {
		fmt.Printf("Failed to fetch history for %s: %v\n", fullName, err)
		os.Exit(1)
	}

	bold := color.New(color.Bold).SprintfFunc()
	fmt.Println(bold("Star history of %s (%d points)", fullName, len(samples)))
	for _, sample := range samples {
		fmt.Printf("  %s  %d\n", sample.Date, sample.Count)
	}

	if *saveFlag {
		if err := scraper.PersistHistory(fullName, samples); err != nil {
			fmt.Printf("Failed to persist history: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Saved to storage")
	}
}
