package store

// Setting keys form a closed set. All call sites go through these constants;
// arbitrary string keys are not written to the settings table.
const (
	// SettingOvernightMode is "true" while an overnight run window is open.
	SettingOvernightMode = "overnight_mode"
	// SettingActiveRunID points at the running overnight run, empty when none.
	SettingActiveRunID = "active_run_id"
	// SettingLastIntelRefresh is the unix-seconds timestamp of the last intel refresh.
	SettingLastIntelRefresh = "last_intel_refresh"
	// SettingOvernightWindowStart is the local HH:MM the unattended window opens.
	SettingOvernightWindowStart = "overnight_window_start"
	// SettingOvernightWindowEnd is the local HH:MM the unattended window closes.
	SettingOvernightWindowEnd = "overnight_window_end"
	// SettingRefreshIntervalMin is the scheduled intel refresh interval in minutes.
	SettingRefreshIntervalMin = "intel_refresh_interval_min"
)
