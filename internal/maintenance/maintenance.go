// Package maintenance provides one-shot tasks that run instead of the relay.
package maintenance

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srcrelay/internal/config"
	"github.com/woozymasta/srcrelay/internal/models"
	"github.com/woozymasta/srcrelay/internal/rcon"
	"github.com/woozymasta/srcrelay/internal/routes"
)

const workers = 4

// AvatarPruner removes cached avatars.
type AvatarPruner interface {
	DeleteAvatars() (int64, error)
}

// Executor runs an RCON command against a route.
type Executor interface {
	Execute(ctx context.Context, route routes.Route, command string) rcon.Result
}

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store AvatarPruner, table *routes.Table, exec Executor) bool {
	if cfg.Storage.PruneAvatars {
		log.Info().Msg("Pruning cached avatars...")

		count, err := store.DeleteAvatars()
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune avatars")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}

		return true
	}

	if !cfg.CheckRoutes {
		return false
	}

	if table.Len() == 0 {
		log.Info().Msg("No routes configured")
		return true
	}

	log.Info().Int("count", table.Len()).Msgf("Checking routes with %d workers...", workers)
	Report(os.Stdout, CheckRoutes(ctx, table.All(), exec))
	log.Info().Msg("Maintenance task completed")

	return true
}

// CheckRoutes runs "status" against every route and returns the outcomes in
// route order.
func CheckRoutes(ctx context.Context, list []routes.Route, exec Executor) []models.RouteCheck {
	results := make([]models.RouteCheck, len(list))
	jobs := make(chan int, len(list))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = checkRoute(ctx, list[idx], exec)
			}
		}()
	}

	for i := range list {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	return results
}

func checkRoute(ctx context.Context, route routes.Route, exec Executor) models.RouteCheck {
	logCtx := log.With().
		Str("route", route.Name).
		Str("address", route.Address()).
		Logger()

	start := time.Now()
	res := exec.Execute(ctx, route, "status")

	check := models.RouteCheck{
		Route:    route.Name,
		Address:  route.Address(),
		Output:   firstLine(res.Text),
		Duration: time.Since(start),
		OK:       !res.Failed(),
	}

	if res.Failed() {
		logCtx.Debug().Err(res.Err).Msg("Route check failed")
	} else {
		logCtx.Trace().Msg("Route check passed")
	}

	return check
}

// Report renders checks as a table.
func Report(w io.Writer, checks []models.RouteCheck) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Route", "Address", "OK", "Time", "Output"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, c := range checks {
		ok := "yes"
		if !c.OK {
			ok = "NO"
		}

		tw.Append([]string{
			c.Route,
			c.Address,
			ok,
			c.Duration.Round(time.Millisecond).String(),
			c.Output,
		})
	}

	tw.Render()
	_, _ = fmt.Fprintf(w, "%d/%d routes reachable\n", countOK(checks), len(checks))
}

func countOK(checks []models.RouteCheck) int {
	n := 0
	for _, c := range checks {
		if c.OK {
			n++
		}
	}
	return n
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}
