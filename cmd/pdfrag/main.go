package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pdfrag/internal/cli"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers questions about a folder of PDF documents using retrieval-augmented generation.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: pdfrag API
//   description: |
//     Upload PDFs, index their text in a vector store and ask questions answered
//     from the most relevant passages, with page-level citations.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
//   - multipart/form-data
// produces:
//   - application/json
//   - text/event-stream

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
