package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"github.com/elonfeng/newslens/pkg/theme"
)

var (
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when inserting a row whose unique key exists.
	ErrDuplicate = errors.New("duplicate")
)

// Article is a stored news article with its latest sentiment result.
// Sentiment fields are nil until the article has been scored.
type Article struct {
	ID             int64     `db:"id" json:"id"`
	Title          string    `db:"title" json:"title"`
	Content        string    `db:"content" json:"content"`
	Link           string    `db:"link" json:"link"`
	PubDate        time.Time `db:"pub_date" json:"pub_date"`
	FeedURL        string    `db:"feed_url" json:"feed_url"`
	SentimentScore *float64  `db:"sentiment_score" json:"sentiment_score,omitempty"`
	SentimentType  *string   `db:"sentiment_type" json:"sentiment_type,omitempty"`
	Confidence     *float64  `db:"confidence" json:"confidence,omitempty"`
	AnalysisModel  *string   `db:"analysis_model" json:"analysis_model,omitempty"`
}

// ThemedArticle is an article with its relevance to one theme.
type ThemedArticle struct {
	Article
	ThemeConfidence float64 `db:"theme_confidence" json:"theme_confidence"`
}

// ThemeAnalysis is the stored relevance of one article to one theme.
type ThemeAnalysis struct {
	ArticleID  int64   `db:"article_id" json:"article_id"`
	ThemeID    string  `db:"theme_id" json:"theme_id"`
	Confidence float64 `db:"confidence" json:"confidence"`
}

// ThemeStat counts the articles linked to a theme.
type ThemeStat struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Color        string `db:"color" json:"color"`
	ArticleCount int    `db:"article_count" json:"article_count"`
}

// ThemeUpdate is a partial theme update. Nil fields are left unchanged.
type ThemeUpdate struct {
	Name        *string
	Keywords    []string
	Color       *string
	Description *string
}

// ListOpts controls article listing.
type ListOpts struct {
	Since time.Time
	// Limit caps the result; 0 means 100 and a negative value means no limit.
	Limit int
}

// Store is the persistence interface.
type Store interface {
	ListThemes(ctx context.Context) ([]theme.Theme, error)
	GetTheme(ctx context.Context, id string) (*theme.Theme, error)
	CreateTheme(ctx context.Context, t theme.Theme) error
	UpdateTheme(ctx context.Context, id string, u ThemeUpdate) error
	DeleteTheme(ctx context.Context, id string) error

	InsertArticle(ctx context.Context, a *Article) error
	ArticleIDByLink(ctx context.Context, link string) (int64, error)
	GetArticle(ctx context.Context, id int64) (*Article, error)
	ListArticles(ctx context.Context, opts ListOpts) ([]Article, error)
	CountArticles(ctx context.Context) (int, error)
	DocumentFrequency(ctx context.Context, term string) (int, error)
	DeleteArticlesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	UpdateSentiment(ctx context.Context, articleID int64, score float64, sentimentType string, confidence float64, model string) error
	ReplaceThemeAnalyses(ctx context.Context, articleID int64, analyses []ThemeAnalysis) error
	GetThemeAnalyses(ctx context.Context, articleID int64) ([]ThemeAnalysis, error)
	ArticlesByTheme(ctx context.Context, themeID string, minConfidence float64, limit int) ([]ThemedArticle, error)
	ThemeStatistics(ctx context.Context, minConfidence float64) ([]ThemeStat, error)
	SentimentDistribution(ctx context.Context) (map[string]int, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database, runs migrations and seeds DefaultThemes if no theme exists yet.
func New(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.seedThemes(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) seedThemes(ctx context.Context) error {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM themes"); err != nil {
		return fmt.Errorf("count themes: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, t := range DefaultThemes {
		if err := s.CreateTheme(ctx, t); err != nil && !errors.Is(err, ErrDuplicate) {
			return fmt.Errorf("seed theme %s: %w", t.ID, err)
		}
	}
	return nil
}

const articleColumns = `a.id, a.title, a.content, a.link, a.pub_date, a.feed_url,
	a.sentiment_score, a.sentiment_type, a.confidence, a.analysis_model`

// InsertArticle stores a new article and sets a.ID. It returns ErrDuplicate if the link is already stored.
func (s *SQLiteStore) InsertArticle(ctx context.Context, a *Article) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (title, content, link, pub_date, feed_url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(link) DO NOTHING
	`, a.Title, a.Content, a.Link, a.PubDate.UTC(), a.FeedURL)
	if err != nil {
		return fmt.Errorf("insert article %s: %w", a.Link, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("insert article %s: %w", a.Link, ErrDuplicate)
	}
	a.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ArticleIDByLink(ctx context.Context, link string) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, "SELECT id FROM articles WHERE link = ?", link)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("article %s: %w", link, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get article %s: %w", link, err)
	}
	return id, nil
}

func (s *SQLiteStore) GetArticle(ctx context.Context, id int64) (*Article, error) {
	var a Article
	err := s.db.GetContext(ctx, &a, "SELECT "+articleColumns+" FROM articles a WHERE a.id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get article %d: %w", id, err)
	}
	return &a, nil
}

func (s *SQLiteStore) ListArticles(ctx context.Context, opts ListOpts) ([]Article, error) {
	query := "SELECT " + articleColumns + " FROM articles a WHERE 1=1"
	var args []any

	if !opts.Since.IsZero() {
		query += " AND a.pub_date >= ?"
		args = append(args, opts.Since.UTC())
	}

	query += " ORDER BY a.pub_date DESC, a.id DESC"

	limit := opts.Limit
	if limit == 0 {
		limit = 100
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var articles []Article
	if err := s.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

func (s *SQLiteStore) CountArticles(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM articles"); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

// DocumentFrequency counts articles whose title or content contains term as
// whole words, using the same tokenization as theme scoring.
func (s *SQLiteStore) DocumentFrequency(ctx context.Context, term string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM articles WHERE contains_term(title || ' ' || content, ?)", term)
	if err != nil {
		return 0, fmt.Errorf("document frequency %q: %w", term, err)
	}
	return n, nil
}

func init() {
	sqlite.MustRegisterDeterministicScalarFunction("contains_term", 2, containsTerm)
}

// containsTerm is contains_term(text, term): 1 when the words of term occur
// consecutively in text.
func containsTerm(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	text, term := sqlText(args[0]), sqlText(args[1])
	if theme.ContainsTerm(text, term) {
		return int64(1), nil
	}
	return int64(0), nil
}

func sqlText(v driver.Value) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// DeleteArticlesBefore removes articles published before cutoff together with their theme analyses.
func (s *SQLiteStore) DeleteArticlesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM articles WHERE pub_date < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete articles before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) UpdateSentiment(ctx context.Context, articleID int64, score float64, sentimentType string, confidence float64, model string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET sentiment_score = ?, sentiment_type = ?, confidence = ?, analysis_model = ?
		WHERE id = ?
	`, score, sentimentType, confidence, model, articleID)
	if err != nil {
		return fmt.Errorf("update sentiment %d: %w", articleID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update sentiment %d: %w", articleID, ErrNotFound)
	}
	return nil
}

// ReplaceThemeAnalyses atomically replaces every theme analysis of an article.
// Analyses naming a theme that no longer exists are skipped.
func (s *SQLiteStore) ReplaceThemeAnalyses(ctx context.Context, articleID int64, analyses []ThemeAnalysis) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin theme analyses %d: %w", articleID, err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, "SELECT COUNT(*) FROM articles WHERE id = ?", articleID); err != nil {
		return fmt.Errorf("check article %d: %w", articleID, err)
	}
	if exists == 0 {
		return fmt.Errorf("theme analyses %d: %w", articleID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM theme_analyses WHERE article_id = ?", articleID); err != nil {
		return fmt.Errorf("clear theme analyses %d: %w", articleID, err)
	}

	// Themes deleted since they were scored are dropped rather than failing the batch.
	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO theme_analyses (article_id, theme_id, confidence)
		SELECT ?, id, ? FROM themes WHERE id = ?
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ta := range analyses {
		if _, err := stmt.ExecContext(ctx, articleID, ta.Confidence, ta.ThemeID); err != nil {
			return fmt.Errorf("insert theme analysis %d/%s: %w", articleID, ta.ThemeID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetThemeAnalyses(ctx context.Context, articleID int64) ([]ThemeAnalysis, error) {
	var out []ThemeAnalysis
	err := s.db.SelectContext(ctx, &out, `
		SELECT article_id, theme_id, confidence FROM theme_analyses
		WHERE article_id = ?
		ORDER BY confidence DESC, theme_id
	`, articleID)
	if err != nil {
		return nil, fmt.Errorf("get theme analyses %d: %w", articleID, err)
	}
	return out, nil
}

// ArticlesByTheme lists articles linked to a theme with at least minConfidence,
// most relevant first, then most recent.
func (s *SQLiteStore) ArticlesByTheme(ctx context.Context, themeID string, minConfidence float64, limit int) ([]ThemedArticle, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []ThemedArticle
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+articleColumns+`, ta.confidence AS theme_confidence
		FROM articles a
		JOIN theme_analyses ta ON ta.article_id = a.id
		WHERE ta.theme_id = ? AND ta.confidence >= ?
		ORDER BY ta.confidence DESC, a.pub_date DESC
		LIMIT ?
	`, themeID, minConfidence, limit)
	if err != nil {
		return nil, fmt.Errorf("articles by theme %s: %w", themeID, err)
	}
	return out, nil
}

// ThemeStatistics counts, for every theme, the articles linked with at least minConfidence.
func (s *SQLiteStore) ThemeStatistics(ctx context.Context, minConfidence float64) ([]ThemeStat, error) {
	var out []ThemeStat
	err := s.db.SelectContext(ctx, &out, `
		SELECT t.id, t.name, t.color, COUNT(ta.article_id) AS article_count
		FROM themes t
		LEFT JOIN theme_analyses ta ON ta.theme_id = t.id AND ta.confidence >= ?
		GROUP BY t.id, t.name, t.color
		ORDER BY article_count DESC, t.name
	`, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("theme statistics: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SentimentDistribution(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT sentiment_type, COUNT(*) AS cnt FROM articles
		WHERE sentiment_type IS NOT NULL
		GROUP BY sentiment_type
	`)
	if err != nil {
		return nil, fmt.Errorf("sentiment distribution: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var cnt int
		if err := rows.Scan(&typ, &cnt); err != nil {
			return nil, err
		}
		counts[typ] = cnt
	}
	return counts, rows.Err()
}
