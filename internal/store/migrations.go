package store

import "github.com/elonfeng/newslens/pkg/theme"

const schema = `
CREATE TABLE IF NOT EXISTS themes (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    keywords    TEXT NOT NULL DEFAULT '[]',
    color       TEXT NOT NULL DEFAULT '#6366f1',
    description TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS articles (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    title           TEXT NOT NULL,
    content         TEXT NOT NULL DEFAULT '',
    link            TEXT NOT NULL UNIQUE,
    pub_date        DATETIME NOT NULL,
    feed_url        TEXT NOT NULL DEFAULT '',
    sentiment_score REAL,
    sentiment_type  TEXT,
    confidence      REAL,
    analysis_model  TEXT,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_articles_pub_date ON articles(pub_date);
CREATE INDEX IF NOT EXISTS idx_articles_feed_url ON articles(feed_url);

CREATE TABLE IF NOT EXISTS theme_analyses (
    article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    theme_id   TEXT NOT NULL REFERENCES themes(id) ON DELETE CASCADE,
    confidence REAL NOT NULL,
    PRIMARY KEY (article_id, theme_id)
);

CREATE INDEX IF NOT EXISTS idx_theme_analyses_theme ON theme_analyses(theme_id);
`

// DefaultThemes is the taxonomy seeded into an empty database. Existing rows are never overwritten.
var DefaultThemes = []theme.Theme{
	{
		ID:       "geopolitique",
		Name:     "Géopolitique",
		Color:    "#ef4444",
		Keywords: []string{"guerre", "conflit", "invasion", "frontière", "sanctions", "otan", "territoire", "war", "conflict", "border", "nato"},
	},
	{
		ID:       "economie",
		Name:     "Économie",
		Color:    "#10b981",
		Keywords: []string{"croissance", "inflation", "marché", "bourse", "pib", "chômage", "banque", "economy", "market", "growth", "trade"},
	},
	{
		ID:       "securite",
		Name:     "Sécurité",
		Color:    "#f59e0b",
		Keywords: []string{"attentat", "terrorisme", "police", "armée", "cyberattaque", "menace", "security", "terrorism", "attack", "military"},
	},
	{
		ID:       "diplomatie",
		Name:     "Diplomatie",
		Color:    "#6366f1",
		Keywords: []string{"accord", "paix", "négociation", "sommet", "ambassade", "traité", "diplomatie", "agreement", "peace", "summit", "treaty"},
	},
	{
		ID:       "environnement",
		Name:     "Environnement",
		Color:    "#22c55e",
		Keywords: []string{"climat", "réchauffement", "émissions", "biodiversité", "pollution", "énergie", "climate", "emissions", "energy"},
	},
	{
		ID:       "technologie",
		Name:     "Technologie",
		Color:    "#3b82f6",
		Keywords: []string{"intelligence artificielle", "numérique", "cybersécurité", "semi conducteurs", "technologie", "artificial intelligence", "technology", "software"},
	},
}
