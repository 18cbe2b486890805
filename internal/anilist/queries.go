package anilist

// GraphQL documents sent to the AniList API. Field selections mirror the
// model types in models.go.

const mediaFields = `
id
title { romaji english native }
description
episodes
duration
genres
averageScore
coverImage { large medium }
bannerImage
status
format`

const viewerQuery = `
query {
  Viewer {
    id
    name
    avatar { large medium }
    bannerImage
  }
}`

const viewerIDQuery = `
query {
  Viewer {
    id
  }
}`

const searchAnimeQuery = `
query ($search: String!, $page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { total currentPage lastPage hasNextPage perPage }
    media(search: $search, type: ANIME) {` + mediaFields + `
    }
  }
}`

const animeDetailsQuery = `
query ($id: Int!) {
  Media(id: $id, type: ANIME) {` + mediaFields + `
  }
}`

const userAnimeListQuery = `
query ($userId: Int!, $status: MediaListStatus) {
  MediaListCollection(userId: $userId, type: ANIME, status: $status) {
    lists {
      entries {
        id
        mediaId
        status
        score
        progress
        updatedAt
        media {` + mediaFields + `
        }
      }
    }
  }
}`

const saveListEntryMutation = `
mutation ($mediaId: Int!, $status: MediaListStatus, $progress: Int, $score: Float) {
  SaveMediaListEntry(mediaId: $mediaId, status: $status, progress: $progress, score: $score) {
    id
    mediaId
    status
    score
    progress
    updatedAt
  }
}`
