// Package audio models uploaded audio files and stages them on disk.
// It derives extensions and download names from the original filename, lists the
// supported transcription languages, stages uploads as uniquely named temporary
// files that are always removed, and probes WAV headers for logging.
package audio
