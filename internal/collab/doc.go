// Package collab wraps the external tools and in-process helpers each
// pipeline stage delegates its real work to: yt-dlp for downloads,
// whisperx for transcription, ffmpeg for rendering, plus the in-process
// decision engine and packager. Every collaborator classifies its own
// failures as transient or fatal so the driver can retry or park without
// inspecting tool output itself.
package collab
