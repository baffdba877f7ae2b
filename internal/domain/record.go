package domain

import "strings"

// ExportColumns is the fixed column set of an exported record, in order.
var ExportColumns = []string{
	"title",
	"description",
	"tags",
	"transcript",
	"likes",
	"comments",
	"favorites",
	"shares",
	"author_name",
	"author_id",
	"source_url",
	"platform",
	"content_id",
	"local_video_path",
	"local_audio_path",
}

// Columns returns a copy of the export column names
func Columns() []string {
	return append([]string(nil), ExportColumns...)
}

// AggregatedRecord merges everything known about one link. It is immutable
// once assembled.
type AggregatedRecord struct {
	title            string
	description      string
	tags             []string
	transcript       string
	transcriptOrigin SubtitleOrigin
	stats            Stats
	author           Author
	sourceURL        string
	platform         Platform
	contentID        string
	videoPath        string
	audioPath        string
}

// Assemble builds a record from the outputs of the pipeline steps. It has
// no side effects.
func Assemble(link ResolvedLink, meta ContentMetadata, dl DownloadResult, sub SubtitleResult) AggregatedRecord {
	sourceURL := meta.SourceURL
	if sourceURL == "" {
		sourceURL = link.CanonicalURL
	}
	origin := sub.Origin
	if origin == "" {
		origin = OriginUnavailable
	}

	tags := make([]string, len(meta.Tags))
	copy(tags, meta.Tags)

	return AggregatedRecord{
		title:            meta.Title,
		description:      meta.Description,
		tags:             tags,
		transcript:       sub.Text,
		transcriptOrigin: origin,
		stats:            meta.Stats,
		author:           meta.Author,
		sourceURL:        sourceURL,
		platform:         link.Platform,
		contentID:        link.ContentID,
		videoPath:        dl.VideoPath,
		audioPath:        dl.AudioPath,
	}
}

func (r AggregatedRecord) Title() string                    { return r.title }
func (r AggregatedRecord) Description() string              { return r.description }
func (r AggregatedRecord) Transcript() string               { return r.transcript }
func (r AggregatedRecord) TranscriptOrigin() SubtitleOrigin { return r.transcriptOrigin }
func (r AggregatedRecord) Stats() Stats                     { return r.stats }
func (r AggregatedRecord) Author() Author                   { return r.author }
func (r AggregatedRecord) SourceURL() string                { return r.sourceURL }
func (r AggregatedRecord) Platform() Platform               { return r.platform }
func (r AggregatedRecord) ContentID() string                { return r.contentID }
func (r AggregatedRecord) VideoPath() string                { return r.videoPath }
func (r AggregatedRecord) AudioPath() string                { return r.audioPath }

// Tags returns a copy of the record's tags
func (r AggregatedRecord) Tags() []string {
	tags := make([]string, len(r.tags))
	copy(tags, r.tags)
	return tags
}

// Row returns the record's values in ExportColumns order. Counters stay
// numeric so spreadsheets can sort on them.
func (r AggregatedRecord) Row() []interface{} {
	return []interface{}{
		r.title,
		r.description,
		strings.Join(r.tags, ", "),
		r.transcript,
		r.stats.Likes,
		r.stats.Comments,
		r.stats.Favorites,
		r.stats.Shares,
		r.author.Name,
		r.author.ID,
		r.sourceURL,
		string(r.platform),
		r.contentID,
		r.videoPath,
		r.audioPath,
	}
}

// Map returns the record keyed by column name, for JSON output
func (r AggregatedRecord) Map() map[string]interface{} {
	row := r.Row()
	out := make(map[string]interface{}, len(row)+1)
	for i, col := range ExportColumns {
		out[col] = row[i]
	}
	out["transcript_origin"] = string(r.transcriptOrigin)
	return out
}
