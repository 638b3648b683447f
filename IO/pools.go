package IO

// Value pools and phrasings used by the dataset builder. Every template holds one
// "{}" placeholder.

type phrase struct {
	text, action string
}

var alertMessages = []string{
	"Hello", "Welcome", "Success", "Error", "Warning", "Test",
	"Done", "Info", "Note", "Alert", "Hello world", "Good morning",
	"Task done", "File saved", "Loading", "Please wait", "Error 404", "Connection lost",
	"Sync complete", "Build failed", "Upload complete", "Download started", "Process running", "Operation failed",
	"Access granted", "Access denied", "Session expired", "Login successful", "Logout complete", "Settings saved",
	"Data exported", "Import complete", "Backup created", "Restore complete", "Update available", "Update installed",
	"Restart required", "System ready", "Initializing", "Processing", "Completed", "Cancelled",
	"Paused", "Resumed", "Timeout", "Retry", "Skip", "Next",
	"Previous", "Continue", "Stop", "Start", "Finish", "Ready",
	"Busy", "Offline", "Online", "Connected", "Disconnected", "Syncing",
	"Saving", "Loading data", "Fetching", "Computing", "Analyzing", "Scanning",
	"Searching", "Found", "Not found", "Empty", "Full", "Low battery",
	"Charging", "Critical", "Urgent", "Important", "Reminder", "Notification",
	"Message sent", "Message received", "Call incoming", "Call ended", "Meeting started", "Meeting ended",
	"Task assigned", "Task completed", "Deadline approaching", "New message", "New update", "New feature",
	"Beta available", "Release notes", "Changelog", "Tip of the day", "Did you know", "Help needed",
	"Support requested", "Feedback received", "Bug reported", "Issue resolved", "Ticket created", "Case closed",
	"Order placed", "Order shipped", "Delivery scheduled", "Payment received", "Payment failed", "Refund processed",
	"Subscription active", "Subscription expired", "Trial started", "Trial ending", "Upgrade available", "Promo code applied",
	"Discount active", "Sale started", "Sale ended", "Limited time offer", "Stock low", "Out of stock",
	"Back in stock", "Preorder available", "Coming soon", "Released today", "Just launched", "Trending now",
	"Popular choice", "Recommended", "Weather alert", "Traffic update", "Event reminder", "Calendar update",
	"Schedule changed", "Flight delayed", "Flight cancelled", "Gate changed", "Boarding now", "Final call",
	"Reservation confirmed", "Booking complete", "Check-in available", "Room ready", "Checkout required", "Maintenance scheduled",
	"Downtime planned", "Service restored", "System update", "Security patch", "Password changed", "Profile updated",
	"Account verified", "Email confirmed", "Phone verified", "Two-factor enabled", "Recovery setup", "Privacy updated",
	"Terms accepted", "Consent required", "Friend request", "New follower", "Mention received", "Like received",
	"Comment added", "Share received", "Invite sent", "Invite accepted", "Group joined", "Channel subscribed",
	"Storage full", "Storage low", "Cache cleared", "Data reset", "Factory reset", "App installed",
	"App updated", "App removed", "Permission required", "Location access", "Camera access", "Microphone access",
	"Contacts access", "Files access", "Bluetooth access",
}

var arbitraryMessages = []string{
	"abc", "xyz", "testing 123", "random text", "some message", "my custom message", "this is a test", "custom alert",
	"user defined", "any text here", "your message", "whatever you want", "can be anything", "freeform text", "type anything", "say something",
	"message 1", "message 2", "message 3", "alert text", "notification content", "one", "two", "three",
	"four", "five", "six", "seven", "eight", "nine", "ten", "foo bar baz",
	"hello there", "good news", "bad news", "important update", "please read", "urgent notice", "breaking news", "just testing",
	"demo message", "sample", "example", "placeholder", "insert text", "type here", "edit me", "alpha",
	"beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta", "red",
	"blue", "green", "yellow", "purple", "orange", "black", "white", "cat",
	"dog", "bird", "fish", "lion", "tiger", "bear", "wolf", "fox",
	"apple", "banana", "cherry", "date", "elderberry", "fig", "grape", "messages",
	"all messages", "new messages", "unread messages", "pending messages",
}

var navigateTargets = []string{
	"home", "settings", "profile", "dashboard", "login", "search", "about", "help", "contact",
	"account", "preferences", "privacy", "security", "notifications", "messages", "chat", "friends", "followers",
	"following", "posts", "photos", "videos", "audio", "files", "documents", "downloads", "uploads",
	"favorites", "bookmarks", "history", "recent", "trending", "explore", "discover", "browse", "categories",
	"tags", "topics", "channels", "groups", "communities", "events", "calendar", "schedule", "tasks",
	"projects", "notes", "reminders", "alarms", "clock", "timer", "stopwatch", "weather", "maps",
	"location", "directions", "navigation", "traffic", "transit", "flights", "hotels", "restaurants", "shops",
	"services", "businesses", "reviews", "ratings", "recommendations", "suggestions", "deals", "offers", "coupons",
	"rewards", "points", "credits", "balance", "wallet", "payments", "orders", "cart", "checkout",
	"shipping", "tracking", "returns", "refunds", "support", "feedback", "report", "bug", "issue",
	"question", "answer", "faq", "tutorial", "guide", "documentation", "api", "developer", "console",
	"admin", "moderation", "analytics", "statistics", "reports", "insights", "metrics", "performance", "optimization",
	"configuration", "setup", "installation", "update", "backup", "restore", "sync", "export", "import",
	"share", "invite", "connect", "link", "unlink", "manage", "edit", "delete", "archive",
	"trash", "spam", "inbox", "sent", "drafts", "outbox", "queue", "pending", "approved",
	"rejected", "blocked", "muted", "hidden", "visible", "public", "private",
}

var toggleSettings = []string{
	"dark_mode", "notifications", "wifi", "bluetooth", "airplane_mode", "location",
	"gps", "camera", "microphone", "speaker", "volume", "brightness",
	"auto_rotate", "screen_lock", "fingerprint", "face_id", "password", "pin",
	"two_factor", "auto_backup", "auto_sync", "auto_update", "auto_play", "auto_download",
	"auto_connect", "auto_reply", "auto_forward", "auto_delete", "auto_archive", "auto_sort",
	"auto_fill", "auto_correct", "auto_capitalize", "auto_punctuate", "auto_format", "auto_save",
	"auto_lock", "auto_brightness", "auto_theme", "do_not_disturb", "quiet_hours", "focus_mode",
	"bedtime_mode", "reading_mode", "night_mode", "eye_comfort", "blue_light_filter", "color_correction",
	"high_contrast", "large_text", "bold_text", "reduce_motion", "reduce_transparency", "voice_over",
	"talk_back", "switch_access", "select_to_speak", "braille_keyboard", "audio_description", "captions",
	"subtitles", "mono_audio", "audio_balance", "noise_cancellation", "echo_cancellation", "spatial_audio",
	"surround_sound", "bass_boost", "treble_boost", "equalizer", "audio_normalization", "data_saver",
	"low_power", "battery_saver", "performance_mode", "game_mode", "reading_mode", "work_profile",
	"personal_profile", "guest_mode", "kids_mode", "driving_mode", "walking_mode", "vibration",
	"haptic_feedback", "touch_sounds", "screen_sounds", "keyboard_sounds", "lock_sounds", "charging_sounds",
	"notification_led", "flash_notifications", "backlight", "key_backlight", "timeout", "screen_timeout",
	"sleep_timeout", "display_timeout", "wake_lock", "keep_awake", "always_on_display", "ambient_display",
	"lift_to_wake", "double_tap_to_wake", "double_tap_to_sleep", "raise_to_wake", "wave_to_wake", "flip_to_mute",
	"flip_to_snooze", "shake_to_undo", "pinch_to_zoom", "swipe_to_type", "glide_typing", "gesture_typing",
	"one_handed_mode", "split_screen", "picture_in_picture", "freeform",
}

var unrecognizedInputs = []string{
	"hello", "hi", "hey", "good morning", "good afternoon", "good evening", "good night",
	"what is this", "help", "thanks", "thank you", "goodbye", "bye", "see you",
	"later", "how are you", "how do you do", "whats up", "sup", "yo", "greetings",
	"salutations", "test", "testing", "one two three", "asdf", "qwerty", "random",
	"blah", "hmm", "umm", "i dont know", "never mind", "forget it", "skip",
	"pass", "ignore this", "whatever", "yes", "no", "maybe", "ok",
	"okay", "sure", "fine", "alright", "cool", "nice", "what",
	"why", "how", "when", "where", "who", "which", "whose",
	"whom", "tell me a joke", "sing a song", "dance", "play music", "what time is it", "what day is it",
	"who are you", "what are you", "where am i", "what can you do", "introduce yourself", "happy birthday", "merry christmas",
	"happy new year", "congratulations", "good luck", "i love you", "you suck", "you are awesome", "you are terrible",
	"you are the best", "this is confusing", "i am lost", "help me", "i need help", "emergency", "urgent",
	"foo bar", "lorem ipsum", "test test test", "123456", "abc123", "password", "admin",
	"can you hear me", "are you there", "hello world", "ping", "pong", "echo", "repeat",
	"make me a sandwich", "open the pod bay doors", "beam me up", "engage", "make it so",
}

var comboWords = []string{
	"the", "a", "an", "this", "that", "my", "your", "our", "their", "new",
	"old", "big", "small", "good", "bad", "fast", "slow", "message", "alert", "notification",
	"update", "info", "news", "system", "user", "data", "file", "item", "task", "job",
	"done", "ready", "pending", "complete", "failed", "success", "start", "stop", "begin", "end",
	"open", "close", "save", "loading", "saving", "processing", "running", "waiting", "error", "warning",
	"info", "debug", "critical", "urgent", "test", "demo", "sample", "example", "custom", "special",
	"today", "now", "soon", "later", "tomorrow", "yesterday", "all", "some", "any", "each",
	"every", "many", "few", "more", "first", "last", "next", "previous", "current", "final",
	"incoming", "outgoing", "unread", "new", "recent", "latest",
}

var systemPhrases = []phrase{
	{"go back", "back"}, {"back", "back"}, {"return", "back"}, {"go back one", "back"},
	{"previous", "back"}, {"go back now", "back"}, {"take me back", "back"}, {"navigate back", "back"},
	{"step back", "back"}, {"undo", "back"}, {"refresh", "refresh"}, {"reload", "refresh"},
	{"refresh page", "refresh"}, {"reload page", "refresh"}, {"refresh now", "refresh"}, {"reload now", "refresh"},
	{"refresh content", "refresh"}, {"reload content", "refresh"}, {"update view", "refresh"}, {"sync now", "refresh"},
	{"close", "close"}, {"exit", "close"}, {"close app", "close"}, {"exit app", "close"},
	{"quit", "close"}, {"close now", "close"}, {"exit now", "close"}, {"quit now", "close"},
	{"close window", "close"}, {"exit window", "close"}, {"cancel", "cancel"}, {"stop", "stop"},
	{"abort", "cancel"}, {"cancel now", "cancel"}, {"stop now", "stop"}, {"halt", "stop"},
	{"end", "stop"}, {"terminate", "stop"}, {"pause", "pause"}, {"resume", "resume"},
	{"pause now", "pause"}, {"resume now", "resume"}, {"play", "play"}, {"start", "start"},
	{"begin", "start"}, {"launch", "start"}, {"restart", "restart"}, {"reboot", "restart"},
	{"restart app", "restart"}, {"reboot app", "restart"}, {"clear", "clear"}, {"reset", "reset"},
	{"clear all", "clear"}, {"reset all", "reset"}, {"delete", "delete"}, {"remove", "delete"},
	{"delete all", "delete"}, {"remove all", "delete"},
}
var alertTemplates = []string{
	"show alert {}", "alert {}", "display alert {}", "popup {}", "show message {}",
	"notify {}", "show notification {}", "send alert {}", "display message {}", "pop up {}",
}

var navigateTemplates = []string{
	"navigate to {}", "go to {}", "open {}", "switch to {}", "jump to {}",
	"take me to {}", "show {} screen", "load {} page", "view {}", "visit {}",
}

// "activate {}" is listed twice to weight it.
var toggleTemplates = []string{
	"toggle {}", "turn on {}", "enable {}", "switch {}", "activate {}",
	"set {} on", "activate {}", "power on {}", "start {}", "launch {}",
}

// Compact tables for the template-sampling pipeline.

var tinyMessages = []string{
	"Hello", "Welcome", "Success", "Error", "Warning", "Done",
	"Thank you", "Goodbye", "Try again", "Loading", "Saving", "Deleted",
	"Updated", "Created", "Failed", "Processing", "Complete", "Ready", "Busy",
	"Please wait", "File saved", "Connection lost", "Login successful",
	"Operation failed", "Item deleted", "Changes saved", "Task completed",
	"No results found", "Server error", "Access denied", "Invalid input",
	"Welcome back", "Good morning", "See you later", "Happy coding",
	"Hello world", "Test passed", "Build failed", "Sync complete",
}

var tinyScreens = []string{
	"home", "settings", "profile", "dashboard", "login", "register",
	"details", "list", "search", "about", "help", "notifications",
}

var tinySettings = []string{
	"dark_mode", "notifications", "sound", "vibration", "auto_update",
	"location", "bluetooth", "wifi", "data_saver", "battery_saver",
}

// template pairs a phrasing with the pool that fills it and the command it maps to.
// A nil pool marks a fixed phrase.
type template struct {
	text  string
	pool  []string
	build func(string) Command
}

var tinyTemplates = []template{
	{"show alert with message {}", tinyMessages, Alert},
	{"display an alert saying {}", tinyMessages, Alert},
	{"pop up a message {}", tinyMessages, Alert},
	{"alert the user with {}", tinyMessages, Alert},
	{"show a popup {}", tinyMessages, Alert},

	{"navigate to {}", tinyScreens, Navigate},
	{"go to {} screen", tinyScreens, Navigate},
	{"open {}", tinyScreens, Navigate},
	{"take me to {}", tinyScreens, Navigate},
	{"switch to {} page", tinyScreens, Navigate},

	{"toggle {}", tinySettings, Toggle},
	{"switch {}", tinySettings, Toggle},
	{"turn on {}", tinySettings, Toggle},
	{"enable {}", tinySettings, Toggle},
	{"disable {}", tinySettings, Toggle},
	{"turn off {}", tinySettings, Toggle},

	{"refresh the page", nil, fixed("refresh")},
	{"reload", nil, fixed("refresh")},
	{"refresh screen", nil, fixed("refresh")},
	{"go back", nil, fixed("back")},
	{"navigate back", nil, fixed("back")},
	{"return to previous", nil, fixed("back")},
	{"close the app", nil, fixed("close")},
	{"exit application", nil, fixed("close")},
	{"quit", nil, fixed("close")},
}

func fixed(action string) func(string) Command {
	return func(string) Command { return System(action) }
}
