// Package xmltv writes a fetched guide as an XMLTV document
// (http://wiki.xmltv.org/index.php/XMLTVFormat).
package xmltv

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/snapetech/sdguide/internal/livetv"
)

// timeLayout is XMLTV's "YYYYMMDDhhmmss +zzzz".
const timeLayout = "20060102150405 -0700"

const sourceInfoName = "Schedules Direct"

type tvRoot struct {
	XMLName    xml.Name    `xml:"tv"`
	Source     string      `xml:"source-info-name,attr,omitempty"`
	Generator  string      `xml:"generator-info-name,attr,omitempty"`
	Channels   []channel   `xml:"channel"`
	Programmes []programme `xml:"programme"`
}

type channel struct {
	ID      string  `xml:"id,attr"`
	Display []value `xml:"display-name"`
	Icon    *icon   `xml:"icon,omitempty"`
}

type programme struct {
	Start           string       `xml:"start,attr"`
	Stop            string       `xml:"stop,attr"`
	Channel         string       `xml:"channel,attr"`
	Title           value        `xml:"title"`
	SubTitle        *value       `xml:"sub-title,omitempty"`
	Desc            *value       `xml:"desc,omitempty"`
	Date            string       `xml:"date,omitempty"`
	Categories      []value      `xml:"category"`
	Icon            *icon        `xml:"icon,omitempty"`
	EpisodeNums     []episodeNum `xml:"episode-num"`
	Video           *video       `xml:"video,omitempty"`
	Audio           *audio       `xml:"audio,omitempty"`
	PreviouslyShown *struct{}    `xml:"previously-shown,omitempty"`
	New             *struct{}    `xml:"new,omitempty"`
	Rating          *rating      `xml:"rating,omitempty"`
}

type value struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

type icon struct {
	Src string `xml:"src,attr"`
}

type episodeNum struct {
	System string `xml:"system,attr"`
	Value  string `xml:",chardata"`
}

type video struct {
	Quality string `xml:"quality"`
}

type audio struct {
	Stereo string `xml:"stereo"`
}

type rating struct {
	Value string `xml:"value"`
}

// Write encodes channels and programs as an indented XMLTV document.
// Programs on channels not in the list are still written.
func Write(w io.Writer, channels []*livetv.ChannelInfo, programs []livetv.ProgramInfo) error {
	tv := &tvRoot{Source: sourceInfoName, Generator: "sdguide"}
	for _, c := range channels {
		if c == nil {
			continue
		}
		ch := channel{ID: channelID(c), Display: []value{{Value: c.Name}}}
		if c.Number != "" && c.Number != c.Name {
			ch.Display = append(ch.Display, value{Value: c.Number})
		}
		if c.HasImage && c.ImageURL != "" {
			ch.Icon = &icon{Src: c.ImageURL}
		}
		tv.Channels = append(tv.Channels, ch)
	}
	for i := range programs {
		tv.Programmes = append(tv.Programmes, toProgramme(&programs[i]))
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(tv); err != nil {
		return fmt.Errorf("xmltv: encode: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// channelID is the id programmes refer to: the guide number.
func channelID(c *livetv.ChannelInfo) string {
	return c.Number
}

func toProgramme(p *livetv.ProgramInfo) programme {
	out := programme{
		Start:   p.StartDate.Format(timeLayout),
		Stop:    p.EndDate.Format(timeLayout),
		Channel: p.ChannelID,
		Title:   value{Lang: "en", Value: p.Name},
	}
	if p.EpisodeTitle != "" {
		out.SubTitle = &value{Lang: "en", Value: p.EpisodeTitle}
	}
	switch {
	case p.Overview != "":
		out.Desc = &value{Lang: "en", Value: p.Overview}
	case p.ShortOverview != "":
		out.Desc = &value{Lang: "en", Value: p.ShortOverview}
	}
	if p.OriginalAirDate != nil {
		out.Date = p.OriginalAirDate.Format("20060102")
	}
	for _, g := range p.Genres {
		out.Categories = append(out.Categories, value{Lang: "en", Value: g})
	}
	for _, c := range flagCategories(p) {
		if !containsFold(p.Genres, c) {
			out.Categories = append(out.Categories, value{Lang: "en", Value: c})
		}
	}
	if p.HasImage {
		out.Icon = &icon{Src: p.ImageURL}
	}
	out.EpisodeNums = episodeNums(p)
	if p.IsHD {
		out.Video = &video{Quality: "HDTV"}
	}
	switch p.Audio {
	case livetv.AudioDolbyDigital:
		out.Audio = &audio{Stereo: "dolby digital"}
	case livetv.AudioMono:
		out.Audio = &audio{Stereo: "mono"}
	default:
		out.Audio = &audio{Stereo: "stereo"}
	}
	if p.IsRepeat {
		out.PreviouslyShown = &struct{}{}
	} else {
		out.New = &struct{}{}
	}
	if p.OfficialRating != "" {
		out.Rating = &rating{Value: p.OfficialRating}
	}
	return out
}

func flagCategories(p *livetv.ProgramInfo) []string {
	var out []string
	if p.IsMovie {
		out = append(out, "Movie")
	}
	if p.IsSeries {
		out = append(out, "Series")
	}
	if p.IsSports {
		out = append(out, "Sports")
	}
	if p.IsNews {
		out = append(out, "News")
	}
	if p.IsKids {
		out = append(out, "Children")
	}
	return out
}

// episodeNums emits the SD program id ("dd_progid", "EP01234567.0005") and,
// when known, xmltv_ns (zero-based) and on-screen numbering.
func episodeNums(p *livetv.ProgramInfo) []episodeNum {
	var out []episodeNum
	if id := p.ShowID; len(id) > 10 {
		out = append(out, episodeNum{System: "dd_progid", Value: id[:10] + "." + id[10:]})
	}
	if p.SeasonNumber == nil && p.EpisodeNumber == nil {
		return out
	}
	var ns, onscreen strings.Builder
	if p.SeasonNumber != nil {
		ns.WriteString(strconv.Itoa(*p.SeasonNumber - 1))
		onscreen.WriteString("S" + strconv.Itoa(*p.SeasonNumber))
	}
	ns.WriteString(".")
	if p.EpisodeNumber != nil {
		ns.WriteString(strconv.Itoa(*p.EpisodeNumber - 1))
		onscreen.WriteString("E" + strconv.Itoa(*p.EpisodeNumber))
	}
	ns.WriteString(".")
	out = append(out,
		episodeNum{System: "xmltv_ns", Value: ns.String()},
		episodeNum{System: "onscreen", Value: onscreen.String()},
	)
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
