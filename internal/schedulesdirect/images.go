package schedulesdirect

import "strings"

// resolveImageURL picks one artwork variant: small ("Sm") variants when there
// are any, the first "Logo" among them, else the first variant. Relative URIs
// are served from baseURL + "/image/". Returns "" when the set has no variants.
func resolveImageURL(baseURL string, set *sdImageSet) string {
	if set == nil {
		return ""
	}
	imgs := set.images()
	if small := filterImages(imgs, func(im sdImage) bool { return im.Size == "Sm" }); len(small) > 0 {
		imgs = small
	}
	if len(imgs) == 0 {
		return ""
	}
	pick := imgs[0]
	for _, im := range imgs {
		if im.Category == "Logo" {
			pick = im
			break
		}
	}
	switch {
	case pick.URI == "":
		return ""
	case strings.Contains(pick.URI, "http"):
		return pick.URI
	default:
		return baseURL + "/image/" + pick.URI
	}
}

func filterImages(imgs []sdImage, keep func(sdImage) bool) []sdImage {
	var out []sdImage
	for _, im := range imgs {
		if keep(im) {
			out = append(out, im)
		}
	}
	return out
}
