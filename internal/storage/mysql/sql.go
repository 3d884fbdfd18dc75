package mysql

const businessColumns = `
  id, user_id, place_id, name, address, phone, website, category, rating, total_reviews,
  last_sync_at, default_language, default_tone, custom_instructions, is_active, created_at`

const insertBusinessSQL = `
INSERT INTO businesses
  (id, user_id, place_id, name, address, phone, website, category, rating, total_reviews,
   default_language, default_tone, custom_instructions, is_active)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateSyncStatsSQL = `
UPDATE businesses
SET rating = ?, total_reviews = ?, last_sync_at = ?
WHERE id = ?
`

const upsertConnectionSQL = `
INSERT INTO google_connections
  (id, user_id, access_token, refresh_token, token_type, scope, expires_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  access_token  = VALUES(access_token),
  refresh_token = VALUES(refresh_token),
  token_type    = VALUES(token_type),
  scope         = VALUES(scope),
  expires_at    = VALUES(expires_at)
`

// Note: `text` is reserved; keep it quoted everywhere.
const reviewColumns = "id, business_id, google_review_id, author_name, author_photo_url, rating, `text`, language,\n" +
	"  has_reply, reply_text, reply_author, replied_at, review_created_at, fetched_at"

const insertReviewsPrefix = "INSERT INTO reviews\n  (" + reviewColumns + ")\nVALUES "

// Reply columns are written as given; the caller decides whether stored replies survive.
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  author_name       = VALUES(author_name),\n" +
	"  author_photo_url  = VALUES(author_photo_url),\n" +
	"  rating            = VALUES(rating),\n" +
	"  `text`            = VALUES(`text`),\n" +
	"  language          = VALUES(language),\n" +
	"  has_reply         = VALUES(has_reply),\n" +
	"  reply_text        = VALUES(reply_text),\n" +
	"  reply_author      = VALUES(reply_author),\n" +
	"  replied_at        = VALUES(replied_at),\n" +
	"  review_created_at = VALUES(review_created_at),\n" +
	"  fetched_at        = VALUES(fetched_at)\n"

const markRepliedSQL = `
UPDATE reviews
SET has_reply = 1, reply_text = ?, reply_author = ?, replied_at = ?
WHERE business_id = ? AND google_review_id IN (?, ?)
`

const competitorReviewColumns = "id, competitor_id, google_review_id, author_name, author_photo_url, rating, `text`, language,\n" +
	"  review_created_at, fetched_at"

const insertCompetitorReviewsPrefix = "INSERT INTO competitor_reviews\n  (" + competitorReviewColumns + ")\nVALUES "

const insertCompetitorReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  author_name       = VALUES(author_name),\n" +
	"  author_photo_url  = VALUES(author_photo_url),\n" +
	"  rating            = VALUES(rating),\n" +
	"  `text`            = VALUES(`text`),\n" +
	"  language          = VALUES(language),\n" +
	"  review_created_at = VALUES(review_created_at),\n" +
	"  fetched_at        = VALUES(fetched_at)\n"

const competitorColumns = "c.id, c.business_id, c.place_id, c.name, c.address, c.rating, c.total_reviews, c.last_sync_at, c.created_at"

const getCompetitorSQL = `
SELECT ` + competitorColumns + `
FROM competitors c
JOIN businesses b ON b.id = c.business_id
WHERE c.id = ? AND b.user_id = ?
`

const listCompetitorsSQL = `
SELECT ` + competitorColumns + `
FROM competitors c
WHERE c.business_id = ?
ORDER BY c.created_at DESC, c.id DESC
`

const insertCompetitorSQL = `
INSERT INTO competitors (id, business_id, place_id, name, address, rating, total_reviews, last_sync_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const deleteCompetitorSQL = `
DELETE c FROM competitors c
JOIN businesses b ON b.id = c.business_id
WHERE c.id = ? AND b.user_id = ?
`

const findTemplateSQL = `
SELECT id, business_id, name, tone, language, instructions, example_response
FROM templates
WHERE business_id = ? AND tone = ? AND language = ?
ORDER BY created_at DESC
LIMIT 1
`
