package anilist

// mediaSubquery is the common GraphQL selection set for anime metadata.
const mediaSubquery = `
id
title {
	romaji
	english
	native
}
description(asHtml: false)
coverImage {
	extraLarge
	large
	medium
}
genres
episodes
duration
averageScore
status
format
startDate {
	year
	month
	day
}
`

const pageQuery = `
query ($search: String, $page: Int, $perPage: Int, $season: MediaSeason, $seasonYear: Int, $status: MediaStatus, $genres: [String], $sort: [MediaSort]) {
	Page(page: $page, perPage: $perPage) {
		pageInfo {
			total
			hasNextPage
		}
		media(type: ANIME, search: $search, season: $season, seasonYear: $seasonYear, status: $status, genre_in: $genres, sort: $sort) {
			` + mediaSubquery + `
		}
	}
}`

const byIDQuery = `
query ($id: Int) {
	Media(id: $id, type: ANIME) {
		` + mediaSubquery + `
	}
}`
