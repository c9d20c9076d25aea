// Package api is the cached client in front of the club data backend.
//
// Reads of reference data (camps, courses, settings) go through a short TTL
// cache. Callers that are about to write on the basis of what they read pass
// force=true to skip it, and every write invalidates the cache entries of the
// resource class it touched.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"club-registration/internal/backend"
	"club-registration/internal/cache"
	"club-registration/internal/metrics"
	"club-registration/internal/models"
)

// ErrNotConfirmed is returned when a write got an answer without a record id.
var ErrNotConfirmed = errors.New("write not confirmed by api")

const DefaultCacheTTL = time.Minute

type Options struct {
	CacheTTL time.Duration
	Location *time.Location
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Client struct {
	be      backend.Backend
	cache   *cache.TTL[[]models.Row]
	group   singleflight.Group
	loc     *time.Location
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(be backend.Backend, opts Options) *Client {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		be:      be,
		cache:   cache.New[[]models.Row](opts.CacheTTL),
		loc:     opts.Location,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
}

// Cache exposes the underlying cache, e.g. for an admin "refresh" action.
func (c *Client) Cache() *cache.TTL[[]models.Row] { return c.cache }

func (c *Client) Location() *time.Location { return c.loc }

func cacheKey(resource string) string { return "fetch=" + resource }

// Fetch reads resource through the cache. force skips the cache and stores
// the fresh result. Returned rows are shared and must not be modified.
func (c *Client) Fetch(ctx context.Context, resource string, force bool) ([]models.Row, error) {
	key := cacheKey(resource)
	if !force {
		if rows, ok := c.cache.Get(key); ok {
			c.metrics.CacheLookup(resource, true)
			return rows, nil
		}
		c.metrics.CacheLookup(resource, false)
		// The shared fetch outlives any one caller's cancellation.
		v, err, _ := c.group.Do(key, func() (interface{}, error) {
			return c.fetchAndStore(context.WithoutCancel(ctx), resource)
		})
		if err != nil {
			return nil, err
		}
		return v.([]models.Row), nil
	}
	return c.fetchAndStore(ctx, resource)
}

// fetchAndStore caches the rows unless a write invalidated the cache while
// they were being read.
func (c *Client) fetchAndStore(ctx context.Context, resource string) ([]models.Row, error) {
	gen := c.cache.Gen()
	start := time.Now()
	rows, err := c.be.Fetch(ctx, resource)
	c.metrics.APICall("GET", resource, err, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if !c.cache.SetIfGen(cacheKey(resource), gen, rows) {
		c.log.Debug("stale read not cached", "resource", resource)
	}
	return rows, nil
}

// Mutate posts {path: {role, operation}, data} and drops cached reads the
// write may have made stale. Invalidation happens even when the call fails,
// since the write may still have landed.
func (c *Client) Mutate(ctx context.Context, role, operation string, data interface{}) (backend.Response, error) {
	start := time.Now()
	resp, err := c.be.Post(ctx, backend.Request{
		Path: backend.Path{Role: role, Operation: operation},
		Data: data,
	})
	c.metrics.APICall("POST", role+"/"+operation, err, time.Since(start).Seconds())
	c.invalidateFor(role)
	if err != nil {
		return backend.Response{}, err
	}
	return resp, nil
}

func (c *Client) invalidateFor(role string) {
	var n int
	switch role {
	case models.RoleCamp:
		n = c.cache.Invalidate(cacheKey(models.ResourceCamps))
	case models.RoleSession:
		n = c.cache.Invalidate(cacheKey(models.ResourceSessions))
	case models.RoleCoachLogin:
		n = c.cache.Invalidate(cacheKey(models.ResourceCoachLogins))
	case models.RoleTrainee, models.RoleCoach:
		n = c.cache.Invalidate("")
	}
	if n > 0 {
		c.log.Debug("cache invalidated", "role", role, "entries", n)
	}
}

// Prefetch warms the cache for camps and courses in the background.
// Failures are only logged: a cold cache is fetched again on first use.
func (c *Client) Prefetch(ctx context.Context) {
	for _, res := range []string{models.ResourceSessions, models.ResourceCamps} {
		res := res
		go func() {
			if _, err := c.Fetch(ctx, res, false); err != nil {
				c.log.Debug("prefetch failed", "resource", res, "error", err)
			}
		}()
	}
}

// ---------- Camps ----------

func (c *Client) Camps(ctx context.Context, force bool) ([]models.Row, error) {
	return c.Fetch(ctx, models.ResourceCamps, force)
}

func (c *Client) ListCamps(ctx context.Context, force bool) ([]models.Camp, error) {
	rows, err := c.Camps(ctx, force)
	if err != nil {
		return nil, err
	}
	return c.decodeCamps(rows), nil
}

func (c *Client) decodeCamps(rows []models.Row) []models.Camp {
	camps := []models.Camp{}
	for _, r := range rows {
		if camp, ok := models.DecodeCamp(r, c.loc); ok {
			camps = append(camps, camp)
		}
	}
	return camps
}

func (c *Client) AddCamp(ctx context.Context, camp models.Camp) (int64, error) {
	camp.ID = ""
	camp.Days = keepDated(camp.Days)
	return c.add(ctx, models.RoleCamp, camp)
}

func (c *Client) UpdateCamp(ctx context.Context, camp models.Camp) error {
	if strings.TrimSpace(camp.ID) == "" {
		return fmt.Errorf("update camp: id is empty")
	}
	camp.Days = keepDated(camp.Days)
	_, err := c.Mutate(ctx, models.RoleCamp, models.OpUpdate, camp)
	return err
}

func (c *Client) DeleteCamp(ctx context.Context, id string) error {
	_, err := c.Mutate(ctx, models.RoleCamp, models.OpDelete, map[string]interface{}{"id": idValue(id)})
	return err
}

// keepDated drops camp days without a date.
func keepDated(days []models.CampDay) []models.CampDay {
	out := []models.CampDay{}
	for _, d := range days {
		if strings.TrimSpace(d.Date) != "" {
			out = append(out, d)
		}
	}
	return out
}

// ---------- Courses ----------

func (c *Client) Courses(ctx context.Context, force bool) ([]models.Row, error) {
	return c.Fetch(ctx, models.ResourceSessions, force)
}

func (c *Client) ListCourses(ctx context.Context, force bool) ([]models.Course, error) {
	rows, err := c.Courses(ctx, force)
	if err != nil {
		return nil, err
	}
	return c.decodeCourses(rows), nil
}

func (c *Client) decodeCourses(rows []models.Row) []models.Course {
	courses := []models.Course{}
	for _, r := range rows {
		if course, ok := models.DecodeCourse(r, c.loc); ok {
			courses = append(courses, course)
		}
	}
	return courses
}

func (c *Client) AddCourse(ctx context.Context, course models.Course) (int64, error) {
	course.ID = ""
	return c.add(ctx, models.RoleSession, course)
}

func (c *Client) UpdateCourse(ctx context.Context, course models.Course) error {
	if strings.TrimSpace(course.ID) == "" {
		return fmt.Errorf("update course: id is empty")
	}
	_, err := c.Mutate(ctx, models.RoleSession, models.OpUpdate, course)
	return err
}

func (c *Client) DeleteCourse(ctx context.Context, id string) error {
	_, err := c.Mutate(ctx, models.RoleSession, models.OpDelete, map[string]interface{}{"id": idValue(id)})
	return err
}

// SessionsAndCamps fetches courses and camps in parallel.
func (c *Client) SessionsAndCamps(ctx context.Context) (courses, camps []models.Row, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		courses, err = c.Courses(gctx, false)
		return err
	})
	g.Go(func() error {
		var err error
		camps, err = c.Camps(gctx, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("sessions and camps: %w", err)
	}
	return courses, camps, nil
}

// Schedule is everything on offer: camps and courses, decoded.
func (c *Client) Schedule(ctx context.Context) ([]models.Camp, []models.Course, error) {
	courseRows, campRows, err := c.SessionsAndCamps(ctx)
	if err != nil {
		return nil, nil, err
	}
	return c.decodeCamps(campRows), c.decodeCourses(courseRows), nil
}

// ---------- Registrations ----------

func registrationsResource(role string) (string, error) {
	switch role {
	case models.RoleTrainee:
		return models.ResourceTraineeRegistrations, nil
	case models.RoleCoach:
		return models.ResourceCoachRegistrations, nil
	}
	return "", fmt.Errorf("no registrations for role %q", role)
}

func (c *Client) Registrations(ctx context.Context, role string, force bool) ([]models.Row, error) {
	res, err := registrationsResource(role)
	if err != nil {
		return nil, err
	}
	return c.Fetch(ctx, res, force)
}

// AddRegistration posts a new registration and returns its id.
func (c *Client) AddRegistration(ctx context.Context, role string, cand models.Candidate) (int64, error) {
	if _, err := registrationsResource(role); err != nil {
		return 0, err
	}
	return c.add(ctx, role, cand)
}

// ---------- Settings & misc ----------

func (c *Client) Settings(ctx context.Context, force bool) (models.Settings, error) {
	rows, err := c.Fetch(ctx, models.ResourceSettings, force)
	if err != nil {
		return models.Settings{}, err
	}
	return models.DecodeSettings(rows), nil
}

func (c *Client) CoachesExperience(ctx context.Context) (map[string]float64, error) {
	rows, err := c.Fetch(ctx, models.ResourceCoachesExperience, false)
	if err != nil {
		return nil, err
	}
	return models.DecodeExperience(rows, time.Now().In(c.loc).Year()), nil
}

func (c *Client) CoachLogins(ctx context.Context) ([]models.Row, error) {
	return c.Fetch(ctx, models.ResourceCoachLogins, false)
}

// UpcomingSessions always goes to the backend: it lists who has signed up to
// coach, which changes with every coach registration.
func (c *Client) UpcomingSessions(ctx context.Context) ([]map[string]interface{}, error) {
	rf, ok := c.be.(backend.RawFetcher)
	if !ok {
		return nil, fmt.Errorf("upcoming sessions: %w", backend.ErrUnsupported)
	}
	start := time.Now()
	raw, err := rf.FetchRaw(ctx, models.ResourceUpcomingSessions)
	c.metrics.APICall("GET", models.ResourceUpcomingSessions, err, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return decodeObjects(raw), nil
}

func (c *Client) add(ctx context.Context, role string, data interface{}) (int64, error) {
	resp, err := c.Mutate(ctx, role, models.OpAdd, data)
	if err != nil {
		return 0, err
	}
	id := resp.ID()
	if id <= 0 {
		return 0, fmt.Errorf("add %s: %w", role, ErrNotConfirmed)
	}
	return id, nil
}

// idValue sends numeric ids as numbers, as the web app compares them that way.
func idValue(id string) interface{} {
	id = strings.TrimSpace(id)
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
