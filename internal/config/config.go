package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client used for photo downloads.
var UserAgent = "Go-Birthday-Bot/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName        = "Go Birthday Bot"
	AppID          = "com.github.tartampluch.go-birthday-bot"
	KeyringService = "com.github.tartampluch.go-birthday-bot"
	KeyringUser    = "telegram-bot-token"
	LogFileName    = "bot.log"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	FilePermUserRW fs.FileMode = 0600

	// FilePermShared represents -rw-r--r--, used for cached photos and renders.
	FilePermShared fs.FileMode = 0644

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// DirPermShared represents drwxr-xr-x.
	DirPermShared fs.FileMode = 0755

	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion        = "version"
	FlagDebug          = "debug"
	FlagStoreToken     = "store-token"
	FlagImport         = "import"
	FlagDescVersion    = "Show application version and exit"
	FlagDescDebug      = "Enable debug logging to stdout"
	FlagDescStoreToken = "Save BOT_TOKEN into the OS keyring and exit"
	FlagDescImport     = "Import members from a vCard file (.vcf) and exit"
	MsgVersionOutput   = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Calendar Rendering
// -----------------------------------------------------------------------------

const (
	DefaultCellSize     = 120
	DefaultPadding      = 20
	DefaultHeaderHeight = 60

	// WeekdayBandHeight is the fixed height of the weekday label row.
	WeekdayBandHeight = 30
	// WeekdayBandGap is the offset from the top of the weekday band to the first week row.
	WeekdayBandGap = 40

	GridColumns = 7
	GridRows    = 6

	// CellBorderInset is the border width excluded from a cell's photo area.
	CellBorderInset = 1

	TitleFontSize   = 24
	WeekdayFontSize = 16
	DayFontSize     = 18
	FontDPI         = 72

	// DayBadgePadding is the padding around the day number drawn over photos.
	DayBadgePadding = 3

	PlaceholderImageSize = 256
	PhotoFileExt         = ".jpg"
	PlaceholderFileName  = "None.png"
	RenderFilePrefix     = "calendar-"
	RenderFileExt        = ".png"
)

// -----------------------------------------------------------------------------
// Storage
// -----------------------------------------------------------------------------

const (
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	SchemePostgres  = "postgres://"
	SchemePostgres2 = "postgresql://"
	SQLiteDSNSuffix = "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	MigrationTable  = "schema_migrations"
	MigrateUpMarker = "-- +migrate Up"
	MigrateDnMarker = "-- +migrate Down"

	PgMaxConns        = 5
	PgMaxConnLifetime = time.Hour
	PgConnectTimeout  = 10 * time.Second
)

// -----------------------------------------------------------------------------
// Bot Commands, Buttons & Callbacks
// -----------------------------------------------------------------------------

const (
	CmdStart     = "start"
	CmdCalendar  = "calendar"
	CmdProfile   = "profile"
	CmdSubscribe = "subscribe"
	CmdExport    = "export"

	CallbackCalendarPrefix = "cal"
	CallbackSeparator      = ":"

	BirthdayInputLayout = "02.01.2006"
	BirthdayDateSep     = "."
	MaxDayOfMonth       = 31
	MaxMonth            = 12

	MaxCaptionLength = 1024
	QRCodeSize       = 256
	QRCodeFileName   = "subscribe.png"
	ExportFileName   = "birthdays.vcf"
	UpdateTimeoutSec = 60

	// RenderRateInterval is the minimum spacing between two renders for one chat.
	RenderRateInterval = 3 * time.Second
	RenderRateBurst    = 2
	LimiterIdleTTL     = 30 * time.Minute

	// HTTPRenderRateInterval spaces calendar image requests from one client address.
	HTTPRenderRateInterval = 2 * time.Second
	HTTPRenderRateBurst    = 4
	HTTPRenderRetryAfter   = "2"
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyBtnCalendar      = "btn_calendar"
	TKeyBtnProfile       = "btn_profile"
	TKeyBtnUpdate        = "btn_update"
	TKeyBtnSkip          = "btn_skip"
	TKeyBtnPrev          = "btn_prev"
	TKeyBtnNext          = "btn_next"
	TKeyMsgWelcome       = "msg_welcome"
	TKeyMsgAskPhoto      = "msg_ask_photo"
	TKeyMsgNotPhoto      = "msg_not_photo"
	TKeyMsgAskName       = "msg_ask_name"
	TKeyMsgAskBirthday   = "msg_ask_birthday"
	TKeyMsgSaved         = "msg_saved"
	TKeyMsgBadDate       = "msg_bad_date"
	TKeyErrDateFormat    = "err_date_format"
	TKeyErrDayRange      = "err_day_range"
	TKeyErrMonthRange    = "err_month_range"
	TKeyErrDateFuture    = "err_date_future"
	TKeyErrDateInvalid   = "err_date_invalid"
	TKeyMsgProfile       = "msg_profile"
	TKeyMsgNoPhoto       = "msg_no_photo"
	TKeyMsgNotRegistered = "msg_not_registered"
	TKeyMsgRateLimited   = "msg_rate_limited"
	TKeyMsgRenderFailed  = "msg_render_failed"
	TKeyMsgSaveFailed    = "msg_save_failed"
	TKeyMsgExportFailed  = "msg_export_failed"
	TKeyMsgNoBirthdays   = "msg_no_birthdays"
	TKeyMsgSubscribe     = "msg_subscribe"
	TKeyMsgNoFeed        = "msg_no_feed"
	TKeyNotifyHeader     = "notify_header"
	TKeyNotifyLine       = "notify_line"
	TKeyCaptionLine      = "caption_line"
	TKeyNotSpecified     = "not_specified"
	TKeyNoUsername       = "no_username"
	TKeyCalendarTitle    = "calendar_title"
	TKeyFeedSummary      = "feed_summary"
	TKeyMonthPrefix      = "month_"
	TKeyWeekdayPrefix    = "weekday_"
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	DefaultLanguage    = "ru"
	DefaultTimezone    = "Europe/Moscow"
	DefaultNotifyCron  = "0 9 * * *"
	DefaultRefreshCron = "@hourly"
	JobNotify          = "notify"
	JobFeedRefresh     = "feed_refresh"
	DefaultPort        = "18080"
	DefaultBindAddr    = "127.0.0.1"
	DefaultImagesDir   = "data/images"
	DefaultDatabase    = "data/birthdays.db"
	DefaultFontPath    = "" // empty: the embedded Go Regular font
	UIDSalt            = "go-birthday-bot-v1-"
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	ICalVersion = "2.0"
	ICalProdid  = "-//Go Birthday Bot//Feed//RU"
	ICalCalName = "Birthdays"
	ICalMethod  = "PUBLISH"
	ICalScale   = "GREGORIAN"
	ICalDomain  = "gobirthdaybot"
	ICalRRule   = "FREQ=YEARLY"

	// ICalRRuleLeapDay moves Feb 29 birthdays to Feb 28 in common years.
	ICalRRuleLeapDay = "FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=-1"

	PropUID        = "UID"
	PropSummary    = "SUMMARY"
	PropDTStart    = "DTSTART"
	PropDTStamp    = "DTSTAMP"
	PropRefresh    = "REFRESH-INTERVAL"
	PropVersion    = "VERSION"
	PropProdid     = "PRODID"
	PropXWRCalName = "X-WR-CALNAME"
	PropCalScale   = "CALSCALE"
	PropMethod     = "METHOD"
	PropRRule      = "RRULE"

	VCardVersion    = "4.0"
	VCardTelegramID = "X-TELEGRAM-ID"

	DefaultICalRefresh = 1 * time.Hour

	// StubVCalendar is the minimal valid iCalendar object used when nobody has a birthday set.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"
)

// -----------------------------------------------------------------------------
// Data Formats & Limits
// -----------------------------------------------------------------------------

const (
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339

	UIDHashLength   = 16
	FormatHashInput = "%d|%s"
	FormatUID       = "%s@%s"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	RetryAfterSeconds   = "10"
	MaxHTTPResponseSize = 20 * 1024 * 1024 // Telegram caps bot downloads at 20MB
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	AddrSeparator       = ":"

	RouteFeed     = "/birthdays.ics"
	RouteCalendar = "/calendar/{year:[0-9]{4}}/{month:[0-9]{1,2}}.png"
	RouteMetrics  = "/metrics"
	RouteVarYear  = "year"
	RouteVarMonth = "month"
	RouteUnknown  = "unmatched"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"
	HeaderAllow           = "Allow"
	AllowedMethods        = "GET, HEAD"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeImagePNG        = "image/png"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrInvalidMonth     = "invalid month"
	ErrServerStartup    = "server startup failed"
	ErrServerShutdown   = "server shutdown failed"
	ErrPortRequired     = "server port is required"
	ErrInvalidURL       = "invalid URL structure"
	ErrProtocol         = "unsupported protocol scheme (http/https only)"
	ErrICalEncode       = "failed to encode iCalendar data"
	ErrVCardEncode      = "failed to encode vCard data"
	ErrDateParse        = "unable to parse date"
	ErrLogFile          = "failed to open log file"
	ErrCacheDir         = "could not determine user cache dir"
	ErrCreateDir        = "could not create directory"
	ErrAppFailed        = "application failed unexpectedly"
	ErrWriteResp        = "failed to write response body"
	ErrLocalesAccess    = "failed to access embedded locales"
	ErrLocaleLoad       = "failed to load locale file"
	ErrFontLoad         = "failed to load font, using built-in face"
	ErrPhotoDecode      = "failed to open photo, drawing placeholder"
	ErrPhotoFetch       = "failed to fetch photo, using placeholder"
	ErrPhotoLink        = "failed to resolve photo download link"
	ErrPhotoTooLarge    = "photo exceeds the download size limit"
	ErrRender           = "calendar render failed"
	ErrRenderEncode     = "failed to encode calendar image"
	ErrStoreOpen        = "failed to open record store"
	ErrStoreMigrate     = "failed to apply store migrations"
	ErrStoreQuery       = "record store query failed"
	ErrStoreRequired    = "record store is not configured"
	ErrTokenMissing     = "bot token not found in environment or keyring"
	ErrTokenStore       = "failed to store bot token in keyring"
	ErrSettings         = "failed to parse settings"
	ErrTimezone         = "failed to load timezone"
	ErrBotInit          = "failed to initialize telegram bot"
	ErrBotSend          = "failed to send telegram message"
	ErrBroadcast        = "failed to notify user"
	ErrSchedule         = "failed to register scheduled job"
	ErrImport           = "vCard import failed"
	ErrFeedRefresh      = "failed to refresh birthday feed"
	ErrQRCode           = "failed to generate QR code"
	ErrPlaceholderWrite = "failed to write placeholder image"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Calendar initializing, please try again shortly."
	HTTPMsgInternalErr  = "Internal Server Error"
	HTTPMsgBadMonth     = "Bad Request: month must be between 1 and 12"
	HTTPMsgMethodNotAll = "Method Not Allowed"
	HTTPMsgTooMany      = "Too Many Requests"
)

// -----------------------------------------------------------------------------
// Fallbacks & Defaults (used when a translation is missing)
// -----------------------------------------------------------------------------

const (
	FallbackCaptionLine  = "%d.%d.%d: %s - @%s (исполняется %d)"
	FallbackNotifyHeader = "🎉 Сегодня день рождения отмечают:\n"
	FallbackNotifyLine   = "%d.%d.%d: %s - @%s исполняется %d ✨"
	FallbackNotSpecified = "Не указано"
	FallbackNoUsername   = "unknown"
	FallbackFeedSummary  = "День рождения: %s"
	FallbackTitle        = "%s %d"
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgAppStop         = "Application stopped gracefully"
	MsgAppStarting     = "Starting application"
	MsgServerListen    = "HTTP server listening"
	MsgServerStop      = "Shutting down HTTP server..."
	MsgCacheUpdated    = "Feed cache updated"
	MsgLocaleSkip      = "Skipping non-locale file"
	MsgLocaleBadName   = "Skipping malformed locale filename"
	MsgLocaleLoaded    = "Locale loaded successfully"
	MsgTransMissing    = "Missing translation key"
	MsgLogWarning      = "Warning: %s at %s: %v\n"
	MsgBdayToday       = "Birthday found today"
	MsgRenderDone      = "Calendar rendered"
	MsgPhotoCached     = "Photo already cached"
	MsgPhotoFetched    = "Photo downloaded"
	MsgBotStarted      = "Telegram bot authorized"
	MsgBotStopping     = "Telegram bot stopping"
	MsgUpdateIgnored   = "Ignoring unsupported update"
	MsgCommand         = "Command received"
	MsgUserExists      = "User already registered"
	MsgProfileSaved    = "Profile updated"
	MsgBroadcastDone   = "Birthday broadcast finished"
	MsgNoBirthdays     = "No birthdays today"
	MsgSchedulerStart  = "Scheduler started"
	MsgSchedulerStop   = "Scheduler stopped"
	MsgJobDone         = "Scheduled job finished"
	MsgImportSkipped   = "Skipping vCard without telegram id or birthday"
	MsgImportDone      = "vCard import finished"
	MsgTokenStored     = "Bot token saved to keyring"
	MsgTokenFromRing   = "Bot token loaded from keyring"
	MsgEnvFileMissing  = "No .env file found, using process environment"
	MsgMigrationDone   = "Store migration applied"
	MsgStoreOpen       = "Opening record store"
	MsgRateLimited     = "Render request rate limited"
	MsgSkippedBirthday = "Skipping record without birthday"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyPath      = "path"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyPort      = "port"
	LogKeyAddr      = "addr"
	LogKeyUser      = "user_id"
	LogKeyChat      = "chat_id"
	LogKeyCount     = "count"
	LogKeyDay       = "day"
	LogKeyYear      = "year"
	LogKeyMonth     = "month"
	LogKeyPhotos    = "photos"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyName      = "name"
	LogKeyDOB       = "date_of_birth"
	LogKeyDuration  = "duration_ms"
	LogKeyDriver    = "driver"
	LogKeyMigration = "migration"
	LogKeyJob       = "job"
	LogKeySchedule  = "schedule"
	LogKeyCommand   = "command"
	LogKeySent      = "sent"
	LogKeyFailed    = "failed"
	LogKeyUpdate    = "update_id"

	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompCalendar  = "calendar"
	CompEngine    = "engine"
	CompServer    = "server"
	CompFetcher   = "fetcher"
	CompStore     = "store"
	CompBot       = "bot"
	CompScheduler = "scheduler"
	CompMain      = "main"
	CompI18n      = "i18n"
)
