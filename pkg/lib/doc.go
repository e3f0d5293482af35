// Package lib provides a Go SDK to submit keyword filtered PDF generations
// and watch their progress programmatically.
//
// This package allows applications to drive the PDF service without shelling
// out to the pdfwatch CLI binary. Jobs submitted or watched through the SDK
// are remembered in the same local database as the CLI ones, so a job
// submitted by a script can be resumed later with `pdfwatch watch`.
//
// # Quick Start
//
// Create a client, submit a generation and wait for it:
//
//	client, err := lib.New(ctx, lib.Config{APIURL: "http://localhost:4567"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	res, err := client.Submit(ctx, lib.SubmitOpts{Keywords: "golang, rust"}, &lib.WatchOpts{
//	    Output: os.Stdout,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.JobID, res.Status)
//
// # Watching
//
// [Client.Submit] and [Client.Watch] block until the job reaches a terminal
// status, the polling gives up after [Config].MaxRetries consecutive failed
// requests ([OutcomeStalled]) or the context is cancelled ([OutcomeInterrupted]).
// An interrupted or stalled job keeps running on the service and can be
// resumed:
//
//	res, err := client.Watch(ctx, jobID, nil)
//
// The progress is rendered to [WatchOpts].Output as text lines or, with
// [OutputNDJSON], as one JSON event per line.
//
// # History and Logs
//
//	jobs, _ := client.History(ctx)
//	for _, j := range jobs {
//	    fmt.Printf("%s %s %s\n", j.ID, j.Keywords, j.Status)
//	}
//	logs, _ := client.Logs(ctx, jobs[0].ID)
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotValid]: Invalid input (e.g. empty keywords or a date range over a year).
//   - [ErrRejected]: The PDF service refused the submission.
//   - [ErrTransport]: The PDF service could not be reached or answered with an error status.
//   - [ErrProtocol]: The PDF service answered with a malformed payload.
//   - [ErrNotFound]: A local resource does not exist.
//   - [ErrAlreadyExists]: The job is already being watched by the client.
//
// # Testing
//
// The pdfwatch binary ships a simulated PDF service (`pdfwatch devserver`)
// that can be used as [Config].APIURL, with a temporary database path:
//
//	client, _ := lib.New(ctx, lib.Config{
//	    APIURL:       "http://127.0.0.1:4567",
//	    DBPath:       filepath.Join(t.TempDir(), "test.db"),
//	    PollInterval: time.Millisecond,
//	})
//	defer client.Close()
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. The underlying
// storage uses SQLite with WAL mode, and every watch gets its own poller.
package lib
