package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gramwatch/gramwatch/internal/analytics"
	"github.com/gramwatch/gramwatch/internal/collector"
	"github.com/gramwatch/gramwatch/internal/instagram"
	"github.com/gramwatch/gramwatch/internal/models"
)

// errCollection wraps page-level collection failures that produced no
// usable data at all
var errCollection = errors.New("collection produced no data")

// handleLogin performs a fresh browser login for LOGIN and RECONNECT
// jobs, stores the encrypted session, and enqueues the first sync batch.
// On a pending second factor the browser is deliberately kept open so a
// manual completion or a follow-up RECONNECT with a code can finish the
// challenge.
func (d *Dispatcher) handleLogin(ctx context.Context, job *models.Job) (int, error) {
	params := job.Metadata.Login
	if params == nil || params.Username == "" || params.Password == "" {
		return 0, errMissingCredentials
	}

	account, err := d.accounts.GetByID(ctx, job.TargetAccountID)
	if err != nil {
		return 0, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return 0, fmt.Errorf("account %d: %w", job.TargetAccountID, errAccountNotFound)
	}

	client := instagram.NewClient(&d.cfg.Browser)
	keepBrowser := false
	defer func() {
		if !keepBrowser {
			client.Close()
		}
	}()

	payload, err := client.Login(ctx, instagram.Credentials{
		Username:         params.Username,
		Password:         params.Password,
		VerificationCode: params.VerificationCode,
		AllowManual:      params.AllowManual,
	}, d.cfg.Worker.TwoFactorWait)
	if err != nil {
		if errors.Is(err, instagram.ErrTwoFactorRequired) {
			keepBrowser = true
			d.markNeedsTwoFactor(ctx, account)
			return 0, err
		}
		if stateErr := d.accounts.SetConnectionState(ctx, account.ID, models.ConnectionDisconnected); stateErr != nil {
			d.logger.Error("Failed to mark account disconnected",
				zap.Int64("account_id", account.ID), zap.Error(stateErr))
		}
		return 0, err
	}

	encrypted, err := d.cipher.EncryptToString(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt session: %w", err)
	}
	session := &models.Session{
		TargetAccountID:  account.ID,
		OwnerID:          job.OwnerID,
		EncryptedPayload: encrypted,
		LastLoginAt:      time.Now().UTC(),
		State:            models.SessionStateValid,
	}
	if err := d.sessions.Upsert(ctx, session); err != nil {
		return 0, fmt.Errorf("failed to store session: %w", err)
	}
	if err := d.accounts.SetConnectionState(ctx, account.ID, models.ConnectionConnected); err != nil {
		return 0, fmt.Errorf("failed to mark account connected: %w", err)
	}

	if err := d.jobs.CreateBatch(ctx, followUpJobs(account, job.OwnerID)); err != nil {
		return 0, fmt.Errorf("failed to enqueue sync batch: %w", err)
	}

	d.logger.Info("Account connected",
		zap.Int64("account_id", account.ID),
		zap.String("username", account.Username))
	return 1, nil
}

// markNeedsTwoFactor downgrades the account and any stored session to
// the pending-second-factor state, logging rather than failing on
// bookkeeping errors
func (d *Dispatcher) markNeedsTwoFactor(ctx context.Context, account *models.TrackedAccount) {
	if err := d.accounts.SetConnectionState(ctx, account.ID, models.ConnectionNeeds2FA); err != nil {
		d.logger.Error("Failed to mark account needing verification",
			zap.Int64("account_id", account.ID), zap.Error(err))
	}
	if err := d.sessions.SetState(ctx, account.ID, models.SessionStateNeeds2FA); err != nil {
		d.logger.Error("Failed to mark session needing verification",
			zap.Int64("account_id", account.ID), zap.Error(err))
	}
}

// openSession restores the account's stored session into a fresh browser
// and verifies it is still authenticated. An invalid or rejected session
// downgrades both the session and the account to EXPIRED. The caller
// owns the returned client and must Close it.
func (d *Dispatcher) openSession(ctx context.Context, job *models.Job) (*instagram.Client, *models.TrackedAccount, error) {
	account, err := d.accounts.GetByID(ctx, job.TargetAccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return nil, nil, fmt.Errorf("account %d: %w", job.TargetAccountID, errAccountNotFound)
	}

	session, err := d.sessions.GetByAccount(ctx, account.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || session.State != models.SessionStateValid {
		return nil, nil, fmt.Errorf("account %d has no valid session: %w", account.ID, instagram.ErrSessionExpired)
	}

	payload, err := d.cipher.DecryptFromString(session.EncryptedPayload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt session: %w", err)
	}

	client := instagram.NewClient(&d.cfg.Browser)
	if !client.CheckSession(ctx, payload) {
		client.Close()
		d.expireSession(ctx, account)
		return nil, nil, fmt.Errorf("session rejected for account %d: %w", account.ID, instagram.ErrSessionExpired)
	}
	return client, account, nil
}

// expireSession records a session the platform no longer accepts
func (d *Dispatcher) expireSession(ctx context.Context, account *models.TrackedAccount) {
	if err := d.sessions.SetState(ctx, account.ID, models.SessionStateExpired); err != nil {
		d.logger.Error("Failed to mark session expired",
			zap.Int64("account_id", account.ID), zap.Error(err))
	}
	if err := d.accounts.SetConnectionState(ctx, account.ID, models.ConnectionExpired); err != nil {
		d.logger.Error("Failed to mark account expired",
			zap.Int64("account_id", account.ID), zap.Error(err))
	}
}

// handleSyncProfile refreshes the account's public identity and counters
func (d *Dispatcher) handleSyncProfile(ctx context.Context, job *models.Job) (int, error) {
	client, account, err := d.openSession(ctx, job)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	col := collector.New(client, d.cfg.Worker.RequestDelay)
	profile, err := col.CollectProfile(ctx, account.Username)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errCollection, err)
	}

	account.IGUserID = profile.ExternalID
	account.FullName = profile.FullName
	account.ProfilePicURL = profile.AvatarURL
	account.Biography = profile.Biography
	account.IsPrivate = profile.IsPrivate
	account.IsVerified = profile.IsVerified
	account.FollowersCount = profile.Followers
	account.FollowingCount = profile.Following
	account.MediaCount = profile.MediaCount
	now := time.Now().UTC()
	account.LastSyncedAt = &now

	if err := d.accounts.Update(ctx, account); err != nil {
		return 0, fmt.Errorf("failed to store profile: %w", err)
	}
	return 1, nil
}

// handleSyncFollowers collects both relation lists, diffs them against
// the previous snapshot, and persists the merged state, the change
// events, and a new snapshot
func (d *Dispatcher) handleSyncFollowers(ctx context.Context, job *models.Job) (int, error) {
	client, account, err := d.openSession(ctx, job)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	col := collector.New(client, d.cfg.Worker.RequestDelay)

	// The relation endpoints are keyed by platform user id; resolve it
	// through a profile fetch when the account has never been synced
	if account.IGUserID == "" {
		profile, err := col.CollectProfile(ctx, account.Username)
		if err != nil {
			return 0, fmt.Errorf("%w: cannot resolve user id: %v", errCollection, err)
		}
		account.IGUserID = profile.ExternalID
		if err := d.accounts.Update(ctx, account); err != nil {
			return 0, fmt.Errorf("failed to store resolved user id: %w", err)
		}
	}

	maxRelations := d.cfg.Worker.MaxRelations
	followers, err := col.CollectRelations(ctx, account.IGUserID, collector.KindFollowers, maxRelations)
	if err != nil {
		return 0, fmt.Errorf("%w: followers: %v", errCollection, err)
	}
	following, err := col.CollectRelations(ctx, account.IGUserID, collector.KindFollowing, maxRelations)
	if err != nil {
		return 0, fmt.Errorf("%w: following: %v", errCollection, err)
	}

	var prevFollowerIDs, prevFollowingIDs []string
	prev, err := d.relations.GetLatestSnapshot(ctx, account.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load previous snapshot: %w", err)
	}
	if prev != nil {
		prevFollowerIDs = prev.SnapshotData.FollowerIDs
		prevFollowingIDs = prev.SnapshotData.FollowingIDs
	}

	detectedAt := time.Now().UTC()
	diff := analytics.ComputeRelationDiff(account.ID, prevFollowerIDs, prevFollowingIDs, followers, following, detectedAt)

	d.enrichLostEvents(ctx, account.ID, diff.Events)

	if err := d.relations.UpsertBatch(ctx, diff.Merged); err != nil {
		return 0, fmt.Errorf("failed to store relations: %w", err)
	}
	// Events are best-effort history; their loss must not fail the sync
	if err := d.relations.InsertEvents(ctx, diff.Events); err != nil {
		d.logger.Error("Failed to store relation events",
			zap.Int64("account_id", account.ID),
			zap.Int("events", len(diff.Events)),
			zap.Error(err))
	}

	snapshot := &models.RelationSnapshot{
		TargetAccountID: account.ID,
		CapturedAt:      detectedAt,
		TotalFollowers:  diff.Counters.TotalFollowers,
		TotalFollowing:  diff.Counters.TotalFollowing,
		NewFollowers:    diff.Counters.NewFollowers,
		LostFollowers:   diff.Counters.LostFollowers,
		NonFollowers:    diff.Counters.NonFollowers,
		SnapshotData: models.SnapshotData{
			FollowerIDs:  diff.FollowerIDs,
			FollowingIDs: diff.FollowingIDs,
		},
	}
	if err := d.relations.CreateSnapshot(ctx, snapshot); err != nil {
		return 0, fmt.Errorf("failed to store snapshot: %w", err)
	}

	account.FollowersCount = int64(diff.Counters.TotalFollowers)
	account.FollowingCount = int64(diff.Counters.TotalFollowing)
	account.LastSyncedAt = &detectedAt
	if err := d.accounts.Update(ctx, account); err != nil {
		return 0, fmt.Errorf("failed to update account counters: %w", err)
	}

	d.logger.Info("Relations synced",
		zap.Int64("account_id", account.ID),
		zap.Int("followers", diff.Counters.TotalFollowers),
		zap.Int("following", diff.Counters.TotalFollowing),
		zap.Int("new", diff.Counters.NewFollowers),
		zap.Int("lost", diff.Counters.LostFollowers))
	return len(diff.Merged), nil
}

// enrichLostEvents fills in usernames for departure events from the
// stored relation rows; the departed accounts are absent from the
// current capture so the diff cannot name them itself
func (d *Dispatcher) enrichLostEvents(ctx context.Context, accountID int64, events []*models.RelationEvent) {
	var missing []string
	for _, event := range events {
		if event.Username == "" {
			missing = append(missing, event.ExternalID)
		}
	}
	if len(missing) == 0 {
		return
	}

	stored, err := d.relations.GetByExternalIDs(ctx, accountID, missing)
	if err != nil {
		d.logger.Warn("Failed to resolve departed usernames", zap.Error(err))
		return
	}
	names := make(map[string]string, len(stored))
	for _, rel := range stored {
		names[rel.ExternalID] = rel.Username
	}
	for _, event := range events {
		if event.Username == "" {
			event.Username = names[event.ExternalID]
		}
	}
}

// handleSyncMedia collects recent content, extracts caption tokens, and
// upserts the items
func (d *Dispatcher) handleSyncMedia(ctx context.Context, job *models.Job) (int, error) {
	client, account, err := d.openSession(ctx, job)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	col := collector.New(client, d.cfg.Worker.RequestDelay)
	collected, err := col.CollectContent(ctx, account.Username, d.cfg.Worker.MaxMedia)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errCollection, err)
	}

	items := make([]*models.MediaItem, 0, len(collected))
	for _, c := range collected {
		items = append(items, &models.MediaItem{
			TargetAccountID: account.ID,
			ExternalMediaID: c.ExternalID,
			Shortcode:       c.Shortcode,
			MediaType:       c.MediaType,
			Caption:         c.Caption,
			Hashtags:        collector.ExtractHashtags(c.Caption),
			Mentions:        collector.ExtractMentions(c.Caption),
			URL:             c.DisplayURL,
			Permalink:       fmt.Sprintf("https://www.instagram.com/p/%s/", c.Shortcode),
			LikesCount:      c.LikesCount,
			CommentsCount:   c.CommentsCount,
			VideoViews:      c.VideoViews,
			PublishedAt:     c.TakenAt,
		})
	}
	if err := d.media.UpsertBatch(ctx, items); err != nil {
		return 0, fmt.Errorf("failed to store media items: %w", err)
	}

	now := time.Now().UTC()
	account.LastSyncedAt = &now
	if err := d.accounts.Update(ctx, account); err != nil {
		return 0, fmt.Errorf("failed to update account: %w", err)
	}
	return len(items), nil
}

// handleDeriveMetrics recomputes the stored daily insight and hashtag
// stats; no browser is needed
func (d *Dispatcher) handleDeriveMetrics(ctx context.Context, job *models.Job) (int, error) {
	account, err := d.accounts.GetByID(ctx, job.TargetAccountID)
	if err != nil {
		return 0, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return 0, fmt.Errorf("account %d: %w", job.TargetAccountID, errAccountNotFound)
	}
	return d.analytics.DeriveMetrics(ctx, account)
}
