package test

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"scholarhub/internal/server"
	"scholarhub/internal/service"
	"scholarhub/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentModerationHasOneWinner(t *testing.T) {
	p := newPortal(t)
	student := p.signup(t, "contested")
	listing := p.seedListing(t)

	mods := make([]authUser, 6)
	for i := range mods {
		mods[i] = p.staff(t, fmt.Sprintf("mod%d", i), workflow.RoleModerator)
	}

	body := p.mustCall(t, http.StatusCreated, http.MethodPost, "/api/application", student.Token, applyBody(listing.ID))
	app := decode[server.ApplyResponse](t, body).Application

	var wg sync.WaitGroup
	statuses := make([]int, len(mods))
	for i, mod := range mods {
		action := "approve"
		if i%2 == 1 {
			action = "cancel"
		}
		wg.Add(1)
		go func(i int, token, action string) {
			defer wg.Done()
			statuses[i], _ = p.call(t, http.MethodPatch, fmt.Sprintf("/api/rolemoderator/%d", app.ID), token,
				map[string]string{"action": action})
		}(i, mod.Token, action)
	}
	wg.Wait()

	wins := 0
	for _, status := range statuses {
		if status == http.StatusOK {
			wins++
			continue
		}
		assert.Contains(t, []int{http.StatusConflict, http.StatusTooManyRequests}, status)
	}
	assert.Equal(t, 1, wins, "statuses %v", statuses)

	body = p.mustCall(t, http.StatusOK, http.MethodGet, "/api/trackings/"+app.TrackingID, "", nil)
	timeline := decode[service.Timeline](t, body)
	require.Len(t, timeline.Events, 2)
	assert.Equal(t, workflow.EventFor(workflow.State{
		Application: timeline.ApplicationStatus,
		Payment:     workflow.PaymentUnpaid,
	}), timeline.Events[1].Status)
}
