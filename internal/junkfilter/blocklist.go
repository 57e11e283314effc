package junkfilter

import "strings"

// The domain lists below are the consolidated junk dataset every web-search path
// shares. Grouped by category for maintainability; merged into one matcher at
// construction. Suffix entries (leading dot) match the host and any subdomain.

var directoryDomains = []string{
	"yelp.com",
	"yellowpages.com",
	"whitepages.com",
	"superpages.com",
	"manta.com",
	"bbb.org",
	"angi.com",
	"angieslist.com",
	"homeadvisor.com",
	"thumbtack.com",
	"houzz.com",
	"porch.com",
	"bark.com",
	"expertise.com",
	"threebestrated.com",
	"citysearch.com",
	"local.com",
	"localstack.com",
	"merchantcircle.com",
	"chamberofcommerce.com",
	"dnb.com",
	"bizapedia.com",
	"buzzfile.com",
	"zoominfo.com",
	"dandb.com",
	"opencorporates.com",
	"yellowbot.com",
	"hotfrog.com",
	"brownbook.net",
	"cylex.us.com",
	"tupalo.com",
	"foursquare.com",
	"mapquest.com",
	"2findlocal.com",
	"n49.com",
	"ezlocal.com",
	"showmelocal.com",
	"golocal247.com",
	"judysbook.com",
	"insiderpages.com",
	"kudzu.com",
	"citysquares.com",
	"elocal.com",
	"birdeye.com",
	"trustpilot.com",
	"sitejabber.com",
	"glassdoor.com",
	"indeed.com",
	"ziprecruiter.com",
	"crunchbase.com",
	"nextdoor.com",
	"alignable.com",
	"patch.com",
}

var foodDeliveryDomains = []string{
	"doordash.com",
	"ubereats.com",
	"grubhub.com",
	"postmates.com",
	"seamless.com",
	"slicelife.com",
	"toasttab.com",
	"chownow.com",
	"menupix.com",
	"menupages.com",
	"allmenus.com",
	"zmenu.com",
	"restaurantji.com",
	"restaurantguru.com",
	"tripadvisor.com",
	"opentable.com",
	"resy.com",
	"untappd.com",
	"menuism.com",
	"singleplatform.com",
	"eat24hours.com",
	"delivery.com",
}

var bookingDomains = []string{
	"booking.com",
	"expedia.com",
	"hotels.com",
	"travelocity.com",
	"orbitz.com",
	"priceline.com",
	"kayak.com",
	"agoda.com",
	"trivago.com",
	"vagaro.com",
	"styleseat.com",
	"booksy.com",
	"fresha.com",
	"mindbodyonline.com",
	"classpass.com",
	"setmore.com",
	"schedulicity.com",
	"squareup.com",
	"acuityscheduling.com",
	"calendly.com",
}

var realEstateDomains = []string{
	"zillow.com",
	"realtor.com",
	"redfin.com",
	"trulia.com",
	"apartments.com",
	"rent.com",
	"zumper.com",
	"loopnet.com",
	"crexi.com",
	"airbnb.com",
	"vrbo.com",
	"homes.com",
	"movoto.com",
	"compass.com",
	"century21.com",
	"coldwellbanker.com",
	"remax.com",
	"kw.com",
	"apartmentfinder.com",
	"hotpads.com",
}

var newsDomains = []string{
	"nytimes.com",
	"wsj.com",
	"washingtonpost.com",
	"usatoday.com",
	"cnn.com",
	"foxnews.com",
	"nbcnews.com",
	"abcnews.go.com",
	"cbsnews.com",
	"reuters.com",
	"apnews.com",
	"bloomberg.com",
	"forbes.com",
	"businessinsider.com",
	"huffpost.com",
	"buffalonews.com",
	"nypost.com",
	"chicagotribune.com",
	"latimes.com",
	"sfgate.com",
	"dallasnews.com",
	"azcentral.com",
	"cleveland.com",
	"mlive.com",
	"syracuse.com",
	"newsday.com",
	"tampabay.com",
	"startribune.com",
	"denverpost.com",
	"oregonlive.com",
	"al.com",
	"nj.com",
	"pennlive.com",
	"masslive.com",
	"silive.com",
	"lehighvalleylive.com",
	"wgrz.com",
	"wkbw.com",
	"wivb.com",
	"spectrumlocalnews.com",
}

var socialDomains = []string{
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"pinterest.com",
	"tiktok.com",
	"youtube.com",
	"snapchat.com",
	"reddit.com",
	"tumblr.com",
	"threads.net",
	"medium.com",
	"quora.com",
	"flickr.com",
	"vimeo.com",
}

var professionalDirectoryDomains = []string{
	"avvo.com",
	"justia.com",
	"findlaw.com",
	"lawyers.com",
	"martindale.com",
	"superlawyers.com",
	"nolo.com",
	"healthgrades.com",
	"zocdoc.com",
	"vitals.com",
	"webmd.com",
	"ratemds.com",
	"wellness.com",
	"sharecare.com",
	"caredash.com",
	"npino.com",
	"npidb.org",
	"doctor.com",
	"dentists.com",
	"1800dentist.com",
	"psychologytoday.com",
	"goodtherapy.org",
	"bankrate.com",
	"nerdwallet.com",
	"creditkarma.com",
	"smartasset.com",
	"investopedia.com",
	"wallethub.com",
	"insurance.com",
	"insure.com",
	"policygenius.com",
	"thezebra.com",
	"caring.com",
	"senioradvisor.com",
	"aplaceformom.com",
	"care.com",
	"greatschools.org",
	"niche.com",
}

var platformDomains = []string{
	"wordpress.com",
	"wix.com",
	"wixsite.com",
	"squarespace.com",
	"weebly.com",
	"godaddysites.com",
	"webs.com",
	"site123.me",
	"strikingly.com",
	"carrd.co",
	"jimdosite.com",
	"webador.com",
	"webnode.com",
	"blogspot.com",
	"wordpress.org",
	"shopify.com",
	"etsy.com",
	"amazon.com",
	"ebay.com",
	"walmart.com",
	"target.com",
	"craigslist.org",
	"groupon.com",
	"wikipedia.org",
	"wikihow.com",
	"fandom.com",
	"archive.org",
	"issuu.com",
	"scribd.com",
	"slideshare.net",
	"docplayer.net",
	"coursehero.com",
	"studylib.net",
	"prezi.com",
	"canva.com",
	"linktr.ee",
	"about.me",
	"gofundme.com",
	"eventbrite.com",
	"meetup.com",
}

var searchEngineDomains = []string{
	"google.com",
	"bing.com",
	"yahoo.com",
	"duckduckgo.com",
	"ask.com",
	"aol.com",
	"baidu.com",
	"yandex.com",
	"brave.com",
	"ecosia.org",
	"startpage.com",
	"search.com",
}

// blockedSuffixes catch whole TLD families that are never a business homepage.
var blockedSuffixes = []string{
	".gov",
	".mil",
	".edu",
}

// blocklist stores exact hosts and suffix wildcards merged from the category lists.
type blocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

func newBlocklist() *blocklist {
	b := &blocklist{exact: make(map[string]struct{})}
	groups := [][]string{
		directoryDomains,
		foodDeliveryDomains,
		bookingDomains,
		realEstateDomains,
		newsDomains,
		socialDomains,
		professionalDirectoryDomains,
		platformDomains,
		searchEngineDomains,
	}
	for _, group := range groups {
		for _, domain := range group {
			b.exact[domain] = struct{}{}
		}
	}
	b.suffixes = append(b.suffixes, blockedSuffixes...)
	return b
}

// IsBlocked reports whether host (or any parent domain of it) is on the list.
func (b *blocklist) IsBlocked(host string) bool {
	host = strings.TrimSpace(strings.ToLower(host))
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return false
	}
	for _, suffix := range b.suffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	// Walk up the domain so sub.yelp.com matches the yelp.com entry.
	for {
		if _, ok := b.exact[host]; ok {
			return true
		}
		idx := strings.Index(host, ".")
		if idx < 0 {
			return false
		}
		rest := host[idx+1:]
		if !strings.Contains(rest, ".") {
			return false
		}
		host = rest
	}
}
