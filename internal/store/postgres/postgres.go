package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/autogramhq/automation-service/internal/model"
	"github.com/autogramhq/automation-service/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users             { return &users{db: s.db} }
func (s *pgStore) Accounts() store.Accounts       { return &accounts{db: s.db} }
func (s *pgStore) Automations() store.Automations { return &automations{db: s.db} }
func (s *pgStore) BioPages() store.BioPages       { return &bioPages{db: s.db} }
func (s *pgStore) BioLinks() store.BioLinks       { return &bioLinks{db: s.db} }
func (s *pgStore) SocialLinks() store.SocialLinks { return &socialLinks{db: s.db} }
func (s *pgStore) Leads() store.Leads             { return &leads{db: s.db} }
func (s *pgStore) Events() store.Events           { return &events{db: s.db} }
func (s *pgStore) SendLogs() store.SendLogs       { return &sendLogs{db: s.db} }

// HealthPing implements health.HealthPinger for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the underlying handle for the worker, which shares the pool.
func (s *pgStore) DB() *sql.DB { return s.db }

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	id := m.UserID
	if id == "" {
		id = uuid.New().String()
	}
	var created time.Time
	row := u.db.QueryRowContext(ctx, `
        INSERT INTO users (user_id, email, display_name, password_hash)
        VALUES ($1,$2,$3,$4)
        RETURNING creation_time
    `, id, m.Email, m.DisplayName, m.PasswordHash)
	if err := row.Scan(&created); err != nil {
		return nil, mapConflict(err)
	}
	out := *m
	out.UserID = id
	out.IsActive = true
	out.CreationTime = created
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	return u.scanOne(u.db.QueryRowContext(ctx, `
        SELECT user_id, email, display_name, password_hash, is_active, creation_time
        FROM users WHERE user_id=$1`, userID))
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.scanOne(u.db.QueryRowContext(ctx, `
        SELECT user_id, email, display_name, password_hash, is_active, creation_time
        FROM users WHERE email=$1`, email))
}

func (u *users) scanOne(row *sql.Row) (*model.User, error) {
	var m model.User
	err := row.Scan(&m.UserID, &m.Email, &m.DisplayName, &m.PasswordHash, &m.IsActive, &m.CreationTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (u *users) Delete(ctx context.Context, userID string) error {
	res, err := u.db.ExecContext(ctx, `DELETE FROM users WHERE user_id=$1`, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Instagram accounts ---

type accounts struct{ db *sql.DB }

func (a *accounts) Create(ctx context.Context, m *model.InstagramAccount) (*model.InstagramAccount, error) {
	id := uuid.New().String()
	var created time.Time
	row := a.db.QueryRowContext(ctx, `
        INSERT INTO instagram_accounts (account_id, user_id, ig_user_id, username, sealed_token, token_expires_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING creation_time
    `, id, m.UserID, m.IGUserID, m.Username, m.SealedToken, m.TokenExpiresAt)
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out := *m
	out.AccountID = id
	out.CreationTime = created
	return &out, nil
}

const accountCols = `account_id, user_id, ig_user_id, username, sealed_token, token_expires_at, creation_time`

func (a *accounts) Get(ctx context.Context, userID, accountID string) (*model.InstagramAccount, error) {
	return scanAccount(a.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM instagram_accounts WHERE user_id=$1 AND account_id=$2`, userID, accountID))
}

func (a *accounts) GetByIGUserID(ctx context.Context, igUserID string) (*model.InstagramAccount, error) {
	return scanAccount(a.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM instagram_accounts WHERE ig_user_id=$1`, igUserID))
}

func scanAccount(row *sql.Row) (*model.InstagramAccount, error) {
	var m model.InstagramAccount
	err := row.Scan(&m.AccountID, &m.UserID, &m.IGUserID, &m.Username, &m.SealedToken, &m.TokenExpiresAt, &m.CreationTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (a *accounts) List(ctx context.Context, userID string) ([]*model.InstagramAccount, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT `+accountCols+` FROM instagram_accounts WHERE user_id=$1 ORDER BY creation_time`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.InstagramAccount
	for rows.Next() {
		var m model.InstagramAccount
		if err := rows.Scan(&m.AccountID, &m.UserID, &m.IGUserID, &m.Username, &m.SealedToken, &m.TokenExpiresAt, &m.CreationTime); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (a *accounts) UpdateToken(ctx context.Context, accountID, sealedToken string, expiresAt *time.Time) error {
	res, err := a.db.ExecContext(ctx,
		`UPDATE instagram_accounts SET sealed_token=$2, token_expires_at=$3 WHERE account_id=$1`,
		accountID, sealedToken, expiresAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (a *accounts) Delete(ctx context.Context, userID, accountID string) error {
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM instagram_accounts WHERE user_id=$1 AND account_id=$2`, userID, accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Automations ---

type automations struct{ db *sql.DB }

const automationCols = `automation_id, account_id, name, post_id, trigger_type, keywords, message_type,
        dm_message_template, carousel_elements, comment_reply_enabled, comment_reply_template,
        is_active, creation_time, update_time`

func (a *automations) Create(ctx context.Context, m *model.Automation) (*model.Automation, error) {
	id := uuid.New().String()
	kwJSON, _ := json.Marshal(m.Keywords)
	carJSON, _ := json.Marshal(m.CarouselElements)
	var created, updated time.Time
	row := a.db.QueryRowContext(ctx, `
        INSERT INTO automations (automation_id, account_id, name, post_id, trigger_type, keywords,
            message_type, dm_message_template, carousel_elements, comment_reply_enabled, comment_reply_template, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING creation_time, update_time
    `, id, m.AccountID, m.Name, m.PostID, m.TriggerType, nullIfEmpty(kwJSON),
		m.MessageType, m.DMMessageTemplate, nullIfEmpty(carJSON), m.CommentReplyEnabled, m.CommentReplyTemplate, m.IsActive)
	if err := row.Scan(&created, &updated); err != nil {
		return nil, err
	}
	out := *m
	out.AutomationID = id
	out.CreationTime = created
	out.UpdateTime = updated
	return &out, nil
}

func (a *automations) Get(ctx context.Context, accountID, automationID string) (*model.Automation, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT `+automationCols+` FROM automations WHERE account_id=$1 AND automation_id=$2`, accountID, automationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list, err := scanAutomations(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, model.ErrNotFound
	}
	return list[0], nil
}

func (a *automations) List(ctx context.Context, accountID string) ([]*model.Automation, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT `+automationCols+` FROM automations WHERE account_id=$1 ORDER BY creation_time`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAutomations(rows)
}

func (a *automations) ListActiveForPost(ctx context.Context, igAccountID, postID string) ([]*model.Automation, error) {
	rows, err := a.db.QueryContext(ctx, `
        SELECT a.automation_id, a.account_id, a.name, a.post_id, a.trigger_type, a.keywords, a.message_type,
               a.dm_message_template, a.carousel_elements, a.comment_reply_enabled, a.comment_reply_template,
               a.is_active, a.creation_time, a.update_time
        FROM automations a
        JOIN instagram_accounts acc ON acc.account_id = a.account_id
        WHERE acc.ig_user_id=$1 AND a.post_id=$2 AND a.is_active
        ORDER BY a.creation_time`, igAccountID, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAutomations(rows)
}

func scanAutomations(rows *sql.Rows) ([]*model.Automation, error) {
	var out []*model.Automation
	for rows.Next() {
		var m model.Automation
		var kw, car sql.NullString
		if err := rows.Scan(&m.AutomationID, &m.AccountID, &m.Name, &m.PostID, &m.TriggerType, &kw, &m.MessageType,
			&m.DMMessageTemplate, &car, &m.CommentReplyEnabled, &m.CommentReplyTemplate,
			&m.IsActive, &m.CreationTime, &m.UpdateTime); err != nil {
			return nil, err
		}
		if kw.Valid {
			_ = json.Unmarshal([]byte(kw.String), &m.Keywords)
		}
		if car.Valid {
			_ = json.Unmarshal([]byte(car.String), &m.CarouselElements)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (a *automations) Update(ctx context.Context, m *model.Automation) (*model.Automation, error) {
	kwJSON, _ := json.Marshal(m.Keywords)
	carJSON, _ := json.Marshal(m.CarouselElements)
	res, err := a.db.ExecContext(ctx, `
        UPDATE automations
        SET name=$1, post_id=$2, trigger_type=$3, keywords=$4, message_type=$5,
            dm_message_template=$6, carousel_elements=$7, comment_reply_enabled=$8,
            comment_reply_template=$9, update_time=now()
        WHERE account_id=$10 AND automation_id=$11
    `, m.Name, m.PostID, m.TriggerType, nullIfEmpty(kwJSON), m.MessageType,
		m.DMMessageTemplate, nullIfEmpty(carJSON), m.CommentReplyEnabled,
		m.CommentReplyTemplate, m.AccountID, m.AutomationID)
	if err != nil {
		return nil, err
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return a.Get(ctx, m.AccountID, m.AutomationID)
}

func (a *automations) SetActive(ctx context.Context, accountID, automationID string, active bool) error {
	res, err := a.db.ExecContext(ctx,
		`UPDATE automations SET is_active=$1, update_time=now() WHERE account_id=$2 AND automation_id=$3`,
		active, accountID, automationID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (a *automations) Delete(ctx context.Context, accountID, automationID string) error {
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM automations WHERE account_id=$1 AND automation_id=$2`, accountID, automationID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Bio pages ---

type bioPages struct{ db *sql.DB }

const bioPageCols = `page_id, user_id, account_id, slug, display_name, bio_text, profile_image_url, is_published, creation_time, update_time`

func (b *bioPages) Create(ctx context.Context, m *model.BioPage) (*model.BioPage, error) {
	id := uuid.New().String()
	var created, updated time.Time
	row := b.db.QueryRowContext(ctx, `
        INSERT INTO bio_pages (page_id, user_id, account_id, slug, display_name, bio_text, profile_image_url, is_published)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING creation_time, update_time
    `, id, m.UserID, m.AccountID, m.Slug, m.DisplayName, m.BioText, m.ProfileImageURL, m.IsPublished)
	if err := row.Scan(&created, &updated); err != nil {
		return nil, mapConflict(err)
	}
	out := *m
	out.PageID = id
	out.CreationTime = created
	out.UpdateTime = updated
	return &out, nil
}

func (b *bioPages) Get(ctx context.Context, userID, pageID string) (*model.BioPage, error) {
	return scanBioPage(b.db.QueryRowContext(ctx,
		`SELECT `+bioPageCols+` FROM bio_pages WHERE user_id=$1 AND page_id=$2`, userID, pageID))
}

func (b *bioPages) GetBySlug(ctx context.Context, slug string) (*model.BioPage, error) {
	return scanBioPage(b.db.QueryRowContext(ctx,
		`SELECT `+bioPageCols+` FROM bio_pages WHERE slug=$1`, slug))
}

func scanBioPage(row *sql.Row) (*model.BioPage, error) {
	var m model.BioPage
	err := row.Scan(&m.PageID, &m.UserID, &m.AccountID, &m.Slug, &m.DisplayName, &m.BioText,
		&m.ProfileImageURL, &m.IsPublished, &m.CreationTime, &m.UpdateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (b *bioPages) List(ctx context.Context, userID string) ([]*model.BioPage, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+bioPageCols+` FROM bio_pages WHERE user_id=$1 ORDER BY creation_time`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.BioPage
	for rows.Next() {
		var m model.BioPage
		if err := rows.Scan(&m.PageID, &m.UserID, &m.AccountID, &m.Slug, &m.DisplayName, &m.BioText,
			&m.ProfileImageURL, &m.IsPublished, &m.CreationTime, &m.UpdateTime); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (b *bioPages) Update(ctx context.Context, m *model.BioPage) (*model.BioPage, error) {
	res, err := b.db.ExecContext(ctx, `
        UPDATE bio_pages
        SET slug=$1, display_name=$2, bio_text=$3, profile_image_url=$4, is_published=$5,
            account_id=$6, update_time=now()
        WHERE user_id=$7 AND page_id=$8
    `, m.Slug, m.DisplayName, m.BioText, m.ProfileImageURL, m.IsPublished, m.AccountID, m.UserID, m.PageID)
	if err != nil {
		return nil, mapConflict(err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return b.Get(ctx, m.UserID, m.PageID)
}

func (b *bioPages) Delete(ctx context.Context, userID, pageID string) error {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM bio_pages WHERE user_id=$1 AND page_id=$2`, userID, pageID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Bio links ---

type bioLinks struct{ db *sql.DB }

const bioLinkCols = `link_id, page_id, title, url, position, is_active, creation_time, update_time`

func (b *bioLinks) Create(ctx context.Context, m *model.BioLink) (*model.BioLink, error) {
	id := uuid.New().String()
	var created, updated time.Time
	// New links append to the end of the page.
	row := b.db.QueryRowContext(ctx, `
        INSERT INTO bio_links (link_id, page_id, title, url, position, is_active)
        SELECT $1, $2, $3, $4, COALESCE(MAX(position)+1, 0), $5 FROM bio_links WHERE page_id=$2
        RETURNING creation_time, update_time
    `, id, m.PageID, m.Title, m.URL, m.IsActive)
	if err := row.Scan(&created, &updated); err != nil {
		return nil, err
	}
	return b.Get(ctx, m.PageID, id)
}

func (b *bioLinks) Get(ctx context.Context, pageID, linkID string) (*model.BioLink, error) {
	var m model.BioLink
	err := b.db.QueryRowContext(ctx,
		`SELECT `+bioLinkCols+` FROM bio_links WHERE page_id=$1 AND link_id=$2`, pageID, linkID).
		Scan(&m.LinkID, &m.PageID, &m.Title, &m.URL, &m.Position, &m.IsActive, &m.CreationTime, &m.UpdateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (b *bioLinks) List(ctx context.Context, pageID string) ([]*model.BioLink, error) {
	return b.list(ctx, `SELECT `+bioLinkCols+` FROM bio_links WHERE page_id=$1 ORDER BY position`, pageID)
}

func (b *bioLinks) ListActive(ctx context.Context, pageID string) ([]*model.BioLink, error) {
	return b.list(ctx, `SELECT `+bioLinkCols+` FROM bio_links WHERE page_id=$1 AND is_active ORDER BY position`, pageID)
}

func (b *bioLinks) list(ctx context.Context, query, pageID string) ([]*model.BioLink, error) {
	rows, err := b.db.QueryContext(ctx, query, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.BioLink
	for rows.Next() {
		var m model.BioLink
		if err := rows.Scan(&m.LinkID, &m.PageID, &m.Title, &m.URL, &m.Position, &m.IsActive, &m.CreationTime, &m.UpdateTime); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (b *bioLinks) Update(ctx context.Context, m *model.BioLink) (*model.BioLink, error) {
	res, err := b.db.ExecContext(ctx, `
        UPDATE bio_links SET title=$1, url=$2, is_active=$3, update_time=now()
        WHERE page_id=$4 AND link_id=$5
    `, m.Title, m.URL, m.IsActive, m.PageID, m.LinkID)
	if err != nil {
		return nil, err
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return b.Get(ctx, m.PageID, m.LinkID)
}

func (b *bioLinks) Reorder(ctx context.Context, pageID string, orderedLinkIDs []string) error {
	tx, err := b.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for pos, linkID := range orderedLinkIDs {
		res, err := tx.ExecContext(ctx,
			`UPDATE bio_links SET position=$1, update_time=now() WHERE page_id=$2 AND link_id=$3`,
			pos, pageID, linkID)
		if err != nil {
			return err
		}
		if err := requireRow(res); err != nil {
			return fmt.Errorf("link %s: %w", linkID, err)
		}
	}
	return tx.Commit()
}

func (b *bioLinks) Delete(ctx context.Context, pageID, linkID string) error {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM bio_links WHERE page_id=$1 AND link_id=$2`, pageID, linkID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Social links ---

type socialLinks struct{ db *sql.DB }

func (s *socialLinks) Replace(ctx context.Context, pageID string, links []*model.SocialLink) ([]*model.SocialLink, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM social_links WHERE page_id=$1`, pageID); err != nil {
		return nil, err
	}
	out := make([]*model.SocialLink, 0, len(links))
	for pos, l := range links {
		id := uuid.New().String()
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO social_links (social_link_id, page_id, platform, url, position)
            VALUES ($1,$2,$3,$4,$5)`, id, pageID, l.Platform, l.URL, pos); err != nil {
			return nil, err
		}
		out = append(out, &model.SocialLink{SocialLinkID: id, PageID: pageID, Platform: l.Platform, URL: l.URL, Position: pos})
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *socialLinks) List(ctx context.Context, pageID string) ([]*model.SocialLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT social_link_id, page_id, platform, url, position FROM social_links WHERE page_id=$1 ORDER BY position`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.SocialLink
	for rows.Next() {
		var m model.SocialLink
		if err := rows.Scan(&m.SocialLinkID, &m.PageID, &m.Platform, &m.URL, &m.Position); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- Leads ---

type leads struct{ db *sql.DB }

func (l *leads) Create(ctx context.Context, m *model.Lead) (*model.Lead, error) {
	id := uuid.New().String()
	metaJSON, _ := json.Marshal(m.Metadata)
	var created time.Time
	row := l.db.QueryRowContext(ctx, `
        INSERT INTO leads (lead_id, page_id, email, phone, source_type, metadata)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING creation_time
    `, id, m.PageID, m.Email, m.Phone, m.SourceType, nullIfEmpty(metaJSON))
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out := *m
	out.LeadID = id
	out.CreationTime = created
	return &out, nil
}

func (l *leads) List(ctx context.Context, pageID string, limit int) ([]*model.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
        SELECT lead_id, page_id, email, phone, source_type, metadata, creation_time
        FROM leads WHERE page_id=$1 ORDER BY creation_time DESC LIMIT $2`, pageID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Lead
	for rows.Next() {
		var m model.Lead
		var meta sql.NullString
		if err := rows.Scan(&m.LeadID, &m.PageID, &m.Email, &m.Phone, &m.SourceType, &meta, &m.CreationTime); err != nil {
			return nil, err
		}
		if meta.Valid {
			_ = json.Unmarshal([]byte(meta.String), &m.Metadata)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- Webhook events ---

type events struct{ db *sql.DB }

func (e *events) Insert(ctx context.Context, m *model.WebhookEvent) (*model.WebhookEvent, error) {
	var id int64
	var status string
	var created time.Time
	// ON CONFLICT keeps webhook redelivery idempotent at the database even
	// when the redis dedup key has expired. Redelivery of an already handled
	// event must surface the stored status, not reset it.
	row := e.db.QueryRowContext(ctx, `
        INSERT INTO comment_events (message_id, ig_account_id, payload)
        VALUES ($1,$2,$3)
        ON CONFLICT (message_id) DO UPDATE SET message_id = comment_events.message_id
        RETURNING id, status, creation_time
    `, m.MessageID, m.IGAccountID, nullIfEmpty(m.Payload))
	if err := row.Scan(&id, &status, &created); err != nil {
		return nil, err
	}
	out := *m
	out.ID = id
	out.Status = status
	out.CreationTime = created
	return &out, nil
}

// leaseWindowSeconds is how long a claimed event stays invisible to other
// pollers. A worker that dies mid-batch loses its claim once the window passes.
const leaseWindowSeconds = 60

func (e *events) Lease(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	// Claiming flips rows to processing in the same statement that selects
	// them, so a concurrent replica's lease cannot return the same batch.
	// Row locks alone would not survive past this call. next_attempt_at
	// doubles as the lease deadline for expired-claim recovery.
	rows, err := e.db.QueryContext(ctx, `
        UPDATE comment_events
        SET status='processing', next_attempt_at = now() + make_interval(secs => $2)
        WHERE id IN (
            SELECT id FROM comment_events
            WHERE status IN ('pending','processing') AND next_attempt_at <= now()
            ORDER BY id ASC
            FOR UPDATE SKIP LOCKED
            LIMIT $1)
        RETURNING id, message_id, ig_account_id, payload, status, attempt_count, next_attempt_at, creation_time`,
		limit, leaseWindowSeconds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.WebhookEvent
	for rows.Next() {
		var m model.WebhookEvent
		if err := rows.Scan(&m.ID, &m.MessageID, &m.IGAccountID, &m.Payload, &m.Status,
			&m.AttemptCount, &m.NextAttemptAt, &m.CreationTime); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (e *events) MarkDone(ctx context.Context, id int64) error {
	_, err := e.db.ExecContext(ctx,
		`UPDATE comment_events SET status='done' WHERE id=$1`, id)
	return err
}

func (e *events) MarkFailed(ctx context.Context, id int64) error {
	_, err := e.db.ExecContext(ctx, `
        UPDATE comment_events
        SET status='pending',
            attempt_count = attempt_count + 1,
            next_attempt_at = now() + make_interval(secs => LEAST(POWER(2, attempt_count+1), 300))
        WHERE id=$1`, id)
	return err
}

// --- Send logs ---

type sendLogs struct{ db *sql.DB }

func (s *sendLogs) RecordDM(ctx context.Context, m *model.DMSentLog) (*model.DMSentLog, error) {
	id := uuid.New().String()
	var sent time.Time
	row := s.db.QueryRowContext(ctx, `
        INSERT INTO dm_sent_logs (log_id, automation_id, comment_id, commenter_id, commenter_username, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING sent_time
    `, id, m.AutomationID, m.CommentID, m.CommenterID, m.CommenterUsername, m.Status)
	if err := row.Scan(&sent); err != nil {
		return nil, mapConflict(err)
	}
	out := *m
	out.LogID = id
	out.SentTime = sent
	return &out, nil
}

func (s *sendLogs) DMSentTo(ctx context.Context, automationID, commenterID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM dm_sent_logs WHERE automation_id=$1 AND commenter_id=$2)`,
		automationID, commenterID).Scan(&exists)
	return exists, err
}

func (s *sendLogs) RecordReply(ctx context.Context, m *model.CommentReplyLog) (*model.CommentReplyLog, error) {
	id := uuid.New().String()
	var replied time.Time
	row := s.db.QueryRowContext(ctx, `
        INSERT INTO comment_reply_logs (log_id, automation_id, comment_id, commenter_id, commenter_username, reply_text)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING reply_time
    `, id, m.AutomationID, m.CommentID, m.CommenterID, m.CommenterUsername, m.ReplyText)
	if err := row.Scan(&replied); err != nil {
		return nil, mapConflict(err)
	}
	out := *m
	out.LogID = id
	out.ReplyTime = replied
	return &out, nil
}

func (s *sendLogs) ListDMs(ctx context.Context, automationID string, since time.Time) ([]*model.DMSentLog, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT log_id, automation_id, comment_id, commenter_id, commenter_username, status, sent_time
        FROM dm_sent_logs WHERE automation_id=$1 AND sent_time >= $2 ORDER BY sent_time DESC`,
		automationID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.DMSentLog
	for rows.Next() {
		var m model.DMSentLog
		if err := rows.Scan(&m.LogID, &m.AutomationID, &m.CommentID, &m.CommenterID, &m.CommenterUsername, &m.Status, &m.SentTime); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- helpers ---

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// mapConflict converts unique-violation errors (SQLSTATE 23505) into
// model.ErrConflict so callers can branch without driver knowledge.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", model.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func nullIfEmpty(b []byte) interface{} {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return b
}
