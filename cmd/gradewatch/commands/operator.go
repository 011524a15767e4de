package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"gradewatch-backend/services/watcher"
)

// stdinOperator prompts whoever is running the daemon. The goroutine
// reading stdin leaks if the prompt times out, acceptable since at most
// one prompt is outstanding at a time.
type stdinOperator struct{}

func (stdinOperator) RequestAuthDecision(ctx context.Context) (watcher.AuthDecision, error) {
	fmt.Println("gradebook rejected the access token. shut down? [y/N]")

	answers := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answers <- strings.TrimSpace(line)
	}()

	select {
	case line := <-answers:
		if strings.EqualFold(line, "y") || strings.EqualFold(line, "yes") {
			return watcher.DecisionShutdown, nil
		}
		return watcher.DecisionContinue, nil
	case <-ctx.Done():
		return watcher.DecisionContinue, ctx.Err()
	}
}
