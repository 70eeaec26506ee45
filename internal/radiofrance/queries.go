/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package radiofrance

const gridQuery = `
query Grid($start: Int!, $end: Int!, $station: StationsEnum!) {
  grid(start: $start, end: $end, station: $station, includeTracks: true) {
    __typename
    ... on DiffusionStep {
      id
      start
      end
      diffusion {
        id
        title
        standFirst
        published_date
        url
      }
    }
    ... on TrackStep {
      id
      start
      end
      track {
        id
        title
        albumTitle
        mainArtists
      }
    }
    ... on BlankStep {
      id
      title
      start
      end
    }
  }
}
`

const brandsQuery = `
query Brands {
  brands {
    id
    title
    baseline
    description
    websiteUrl
    playerUrl
    liveStream
    localRadios {
      id
      title
      description
      liveStream
      playerUrl
    }
    webRadios {
      id
      title
      description
      liveStream
      playerUrl
    }
  }
}
`
